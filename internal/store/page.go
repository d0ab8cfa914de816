package store

import (
	"bytes"
	"encoding/json"
)

// Page is a list response. The API returns some lists as a bare array and
// others wrapped as {"items": [...], "total": n}; both decode into Page.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		p.Items, p.Total = items, len(items)
		return nil
	}

	var env struct {
		Items []T  `json:"items"`
		Total *int `json:"total"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.Items = env.Items
	p.Total = len(env.Items)
	if env.Total != nil {
		p.Total = *env.Total
	}
	return nil
}
