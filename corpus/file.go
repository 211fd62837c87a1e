package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads a corpus file. A missing file yields an empty corpus; the
// first occurrence of a duplicated row wins.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}

	return FromRecords(records), nil
}

// Save writes the full corpus with a header. The file is written next to the
// destination and renamed over it, so a failed write leaves the previous
// corpus in place.
func Save(path string, c *Corpus) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".corpus-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WriteCSV(tmp, c.records, true); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set corpus permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace corpus: %w", err)
	}

	return nil
}

// WriteFile writes records with a header to path, replacing any existing
// file. Used for update-only output.
func WriteFile(path string, records []Record) error {
	return Save(path, &Corpus{records: records})
}

// AppendFile appends records to an existing corpus file without repeating
// the header. The file is created with a header when it does not exist.
// Callers must merge first; AppendFile does not check for duplicates.
func AppendFile(path string, records []Record) error {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return WriteFile(path, records)
	}
	if err != nil {
		return fmt.Errorf("failed to stat corpus: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open corpus for append: %w", err)
	}

	if err := WriteCSV(f, records, false); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close corpus: %w", err)
	}
	return nil
}
