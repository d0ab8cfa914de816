// Package obfuscate keeps a remembered password out of plain sight in the
// persisted client state.
//
// This is a reversible encoding, not encryption. Anyone who can read the
// state file can recover the password. It must not be treated as a security
// boundary.
package obfuscate

import (
	"encoding/base64"
	"errors"
	"strings"
)

// prefix marks values written by Obfuscate so that foreign or legacy values
// are rejected instead of decoded into garbage.
const prefix = "obf1:"

var key = []byte("payroll-console/remember-me")

// ErrMalformed is returned by Reveal for values Obfuscate did not produce.
var ErrMalformed = errors.New("obfuscate: malformed value")

// Obfuscate encodes plain so it is not readable at a glance.
func Obfuscate(plain string) string {
	return prefix + base64.StdEncoding.EncodeToString(xor([]byte(plain)))
}

// Reveal reverses Obfuscate.
func Reveal(encoded string) (string, error) {
	body, ok := strings.CutPrefix(encoded, prefix)
	if !ok {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", ErrMalformed
	}
	return string(xor(raw)), nil
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ key[i%len(key)]
	}
	return out
}
