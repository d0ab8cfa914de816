package store

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/al-bashkir/payroll-console/internal/apiclient"
)

// Collection is the CRUD container behind one REST resource.
type Collection[T any] struct {
	state

	client *apiclient.Client
	base   string

	items     []T
	current   *T
	total     int
	lastQuery url.Values
}

// NewCollection returns an empty collection for the resource at base,
// e.g. "/api/v1/employees/".
func NewCollection[T any](c *apiclient.Client, base string) *Collection[T] {
	return &Collection[T]{client: c, base: base}
}

func (c *Collection[T]) itemPath(id int) string {
	return strings.TrimSuffix(c.base, "/") + "/" + strconv.Itoa(id)
}

// Items returns the last loaded list.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Current returns the last fetched single item.
func (c *Collection[T]) Current() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		var zero T
		return zero, false
	}
	return *c.current, true
}

// Total returns the server-reported total of the last list.
func (c *Collection[T]) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// List loads the resource list.
func (c *Collection[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	return c.listFrom(ctx, c.base, query)
}

func (c *Collection[T]) listFrom(ctx context.Context, path string, query url.Values) ([]T, error) {
	var page Page[T]
	err := c.run(func() error {
		var err error
		page, err = apiclient.Get[Page[T]](ctx, c.client, path, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items, c.total = page.Items, page.Total
	if path == c.base {
		c.lastQuery = query
	}
	c.mu.Unlock()
	return page.Items, nil
}

// Get fetches one item and makes it current.
func (c *Collection[T]) Get(ctx context.Context, id int) (T, error) {
	var item T
	err := c.run(func() error {
		var err error
		item, err = apiclient.Get[T](ctx, c.client, c.itemPath(id), nil)
		return err
	})
	if err != nil {
		return item, err
	}
	c.setCurrent(item)
	return item, nil
}

// Create posts body and reloads the list.
func (c *Collection[T]) Create(ctx context.Context, body any) (T, error) {
	return c.mutate(ctx, http.MethodPost, c.base, body)
}

// Update puts body to the item and reloads the list.
func (c *Collection[T]) Update(ctx context.Context, id int, body any) (T, error) {
	return c.mutate(ctx, http.MethodPut, c.itemPath(id), body)
}

// Delete removes the item and reloads the list.
func (c *Collection[T]) Delete(ctx context.Context, id int) error {
	err := c.run(func() error {
		return apiclient.Delete(ctx, c.client, c.itemPath(id))
	})
	if err != nil {
		return err
	}
	return c.refresh(ctx)
}

func (c *Collection[T]) mutate(ctx context.Context, method, path string, body any) (T, error) {
	var item T
	err := c.run(func() error {
		return c.client.Do(ctx, apiclient.Request{Method: method, Path: path, Body: body}, &item)
	})
	if err != nil {
		return item, err
	}
	c.setCurrent(item)
	return item, c.refresh(ctx)
}

func (c *Collection[T]) refresh(ctx context.Context) error {
	c.mu.RLock()
	q := c.lastQuery
	c.mu.RUnlock()
	_, err := c.List(ctx, q)
	return err
}

func (c *Collection[T]) setCurrent(item T) {
	c.mu.Lock()
	c.current = &item
	c.mu.Unlock()
}
