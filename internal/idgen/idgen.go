package idgen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Size is the length of paste identifiers.
const Size = 8

// Generator produces identifiers. Backends take one so tests can force collisions.
type Generator func() (string, error)

// New returns a URL-safe token of Size characters ([A-Za-z0-9_-]).
func New() (string, error) {
	id, err := gonanoid.New(Size)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id, nil
}

// Filename returns a random name for a stored blob, keeping ext.
func Filename(ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate filename: %w", err)
	}
	return id + ext, nil
}
