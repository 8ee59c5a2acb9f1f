// Package fileutil keeps small JSON state files, such as ledger balances,
// on disk. A save replaces the file in one rename so a crash leaves either
// the old state or the new one.
package fileutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StatePerm is the mode of every saved state file. Balances are private to
// the process owner.
const StatePerm fs.FileMode = 0o600

// SaveJSON writes v as indented JSON to filename through a temp file in the
// same directory.
func SaveJSON(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(filename), err)
	}
	return replace(filename, append(data, '\n'))
}

// LoadJSON decodes filename into v. A missing file is reported with
// ok=false and no error so callers can start from an empty state.
func LoadJSON(filename string, v any) (ok bool, err error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", filename, err)
	}
	return true, nil
}

func replace(filename string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(StatePerm); err != nil {
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(filename), err)
	}
	return nil
}
