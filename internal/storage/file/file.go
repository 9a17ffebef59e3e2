package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drakos74/draw-guess/internal/storage"
)

// Save writes the value into the given path with the provided file name.
func Save(filePath string, fileName string, value []byte) error {
	// check if filepath exists
	info, err := os.Stat(filePath)
	if err != nil {
		err := os.MkdirAll(filePath, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not make dir: %s: %w", filePath, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path given is not a directory: %s", filePath)
	}

	// write to a temp file first, so that readers never see a partial value
	p := filepath.Join(filePath, fileName)
	f, err := os.CreateTemp(filePath, fileName+".*")
	if err != nil {
		return fmt.Errorf("could not create file '%s': %w", p, err)
	}
	defer os.Remove(f.Name())

	if _, err = f.Write(value); err != nil {
		f.Close()
		return fmt.Errorf("could not write bytes to file '%s': %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close file '%s': %w", p, err)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return fmt.Errorf("could not replace file '%s': %w", p, err)
	}
	return nil
}

// Load reads the value from the given filePath and fileName.
func Load(filePath string, fileName string) ([]byte, error) {
	p := filepath.Join(filePath, fileName)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("could not find file '%s': %w", p, storage.NotFoundErr)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read file '%s' %s: %w", p, err.Error(), storage.CouldNotLoadErr)
	}
	return data, nil
}
