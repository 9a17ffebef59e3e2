package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/drakos74/draw-guess/internal/model"
)

const (
	// ModelDir is the object path prefix for serialized models.
	ModelDir = "models"
	// ModelFile is the object name of a serialized model.
	ModelFile = "model.json"
)

// DefaultDir is the root directory of the file based stores.
var DefaultDir = "file-storage"

var (
	NotFoundErr     = errors.New("not found")
	CouldNotLoadErr = errors.New("could not load")
	UnavailableErr  = errors.New("store unavailable")
	InvalidKeyErr   = errors.New("invalid key")
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// CheckSession rejects session ids that are not safe to use as a key or a path element.
func CheckSession(id string) error {
	if !sessionPattern.MatchString(id) {
		return fmt.Errorf("session '%s': %w", id, InvalidKeyErr)
	}
	return nil
}

// ModelPath returns the object path of the model of the given session.
func ModelPath(id string) string {
	return fmt.Sprintf("%s/%s/%s", ModelDir, id, ModelFile)
}

// Store persists the session statistics.
// Absent statistics load as zeros.
type Store interface {
	LoadStats(ctx context.Context, id string) (model.Stats, error)
	SaveStats(ctx context.Context, id string, stats model.Stats) error
}

// ModelStore additionally persists the serialized model of a session.
// LoadModel returns NotFoundErr if no model was ever saved.
type ModelStore interface {
	Store
	LoadModel(ctx context.Context, id string) ([]byte, error)
	SaveModel(ctx context.Context, id string, blob []byte) error
	DeleteModel(ctx context.Context, id string) error
}
