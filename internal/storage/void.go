package storage

import (
	"context"
	"fmt"

	"github.com/drakos74/draw-guess/internal/model"
)

// UnavailableStorage stands in for a synced store that could not be configured.
// Every call fails, so sessions keep working in memory and report the failed sync.
type UnavailableStorage struct {
	reason error
}

// NewUnavailableStorage creates a store failing with the given reason.
func NewUnavailableStorage(reason error) *UnavailableStorage {
	return &UnavailableStorage{reason: reason}
}

func (u UnavailableStorage) err() error {
	if u.reason == nil {
		return UnavailableErr
	}
	return fmt.Errorf("%w: %w", u.reason, UnavailableErr)
}

func (u UnavailableStorage) LoadStats(_ context.Context, _ string) (model.Stats, error) {
	return model.Stats{}, u.err()
}

func (u UnavailableStorage) SaveStats(_ context.Context, _ string, _ model.Stats) error {
	return u.err()
}

func (u UnavailableStorage) LoadModel(_ context.Context, _ string) ([]byte, error) {
	return nil, u.err()
}

func (u UnavailableStorage) SaveModel(_ context.Context, _ string, _ []byte) error {
	return u.err()
}

func (u UnavailableStorage) DeleteModel(_ context.Context, _ string) error {
	return u.err()
}
