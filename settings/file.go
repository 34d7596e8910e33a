package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// ErrNotTable is returned when a decoded table is requested but the key holds
// a scalar.
var ErrNotTable = errors.New("settings: not a table")

// Decode reads operator-wide settings from TOML.
func Decode(r io.Reader) (Settings, error) {
	var m map[string]any
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("settings parse failed: %w", err)
	}
	return Settings(m), nil
}

// LoadFile reads operator-wide settings from a TOML file.
func LoadFile(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("settings load failed (%s): %w", path, err)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Table returns the nested table stored under key.
func (s Settings) Table(key string) (Settings, error) {
	v, ok := s[key]
	if !ok {
		return Settings{}, nil
	}
	t, ok := asTable(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotTable, key)
	}
	return Settings(t), nil
}

// Watch reloads the TOML file at path whenever it is written or re-created
// and passes the result to fn (a parse failure is passed as err and the
// previous settings should be kept). The file's directory is watched so that
// editors replacing the file atomically are picked up. Watch returns once
// the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, fn func(Settings, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fn(LoadFile(path))

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("settings watch: %w", err))
			}
		}
	}()
	return nil
}
