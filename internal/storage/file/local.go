package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/storage"
)

const (
	TotalSamplesKey       = "drawGuess_totalSamples"
	CorrectPredictionsKey = "drawGuess_correctPredictions"
)

// LocalStorage keeps the stats of every session as two text encoded integers
// in a directory per session. It does not persist models.
type LocalStorage struct {
	root  string
	mutex *sync.RWMutex
}

// NewLocalStorage creates a local store under the given root.
func NewLocalStorage(root string) *LocalStorage {
	if root == "" {
		root = filepath.Join(storage.DefaultDir, "draw-guess")
	}
	return &LocalStorage{
		root:  root,
		mutex: new(sync.RWMutex),
	}
}

func (l *LocalStorage) dir(id string) (string, error) {
	if err := storage.CheckSession(id); err != nil {
		return "", err
	}
	return filepath.Join(l.root, id), nil
}

func (l *LocalStorage) LoadStats(ctx context.Context, id string) (model.Stats, error) {
	if err := ctx.Err(); err != nil {
		return model.Stats{}, err
	}
	dir, err := l.dir(id)
	if err != nil {
		return model.Stats{}, err
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	total, err := loadInt(dir, TotalSamplesKey)
	if err != nil {
		return model.Stats{}, err
	}
	correct, err := loadInt(dir, CorrectPredictionsKey)
	if err != nil {
		return model.Stats{}, err
	}
	return model.Stats{
		TotalSamples:       total,
		CorrectPredictions: correct,
	}, nil
}

func (l *LocalStorage) SaveStats(ctx context.Context, id string, stats model.Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := l.dir(id)
	if err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := Save(dir, TotalSamplesKey, []byte(strconv.Itoa(stats.TotalSamples))); err != nil {
		return err
	}
	return Save(dir, CorrectPredictionsKey, []byte(strconv.Itoa(stats.CorrectPredictions)))
}

// loadInt reads a text encoded integer, missing values load as zero.
func loadInt(dir, key string) (int, error) {
	b, err := Load(dir, key)
	if errors.Is(err, storage.NotFoundErr) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("could not parse '%s': %s: %w", key, err.Error(), storage.CouldNotLoadErr)
	}
	return v, nil
}
