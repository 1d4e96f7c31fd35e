// Package store keeps one ResponderLocation per mission id between ticks.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"erdemo.org/responder-simulator/internal/models"
)

// ErrNotFound is returned by Get when no mission is stored under the key.
var ErrNotFound = errors.New("responder location not found")

// Store is a last-write-wins key-value store for simulated missions.
type Store interface {
	// Put stores the location under its key and returns that key.
	Put(ctx context.Context, rl *models.ResponderLocation) (string, error)
	// Get returns a copy of the stored location, or ErrNotFound.
	Get(ctx context.Context, key string) (*models.ResponderLocation, error)
	Remove(ctx context.Context, key string) error

	// Keys and Clear are administrative operations.
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error

	Close() error
}

func encode(rl *models.ResponderLocation) ([]byte, error) {
	b, err := msgpack.Marshal(rl)
	if err != nil {
		return nil, fmt.Errorf("encoding responder location %s: %w", rl.Key(), err)
	}
	return b, nil
}

func decode(key string, b []byte) (*models.ResponderLocation, error) {
	var rl models.ResponderLocation
	if err := msgpack.Unmarshal(b, &rl); err != nil {
		return nil, fmt.Errorf("decoding responder location %s: %w", key, err)
	}
	return &rl, nil
}
