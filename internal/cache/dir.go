package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// entry is the on-disk record. The key is kept alongside the value because
// file names are hashes and cannot be reversed.
type entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// DirBackend stores one file per key in a directory.
type DirBackend struct {
	fs  afero.Fs
	dir string
}

// NewDirBackend returns a backend rooted at dir on fs.
func NewDirBackend(fs afero.Fs, dir string) *DirBackend {
	return &DirBackend{fs: fs, dir: dir}
}

// Init creates the directory if needed.
func (b *DirBackend) Init(_ context.Context) error {
	return b.fs.MkdirAll(b.dir, 0o755)
}

func (b *DirBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+".json")
}

// Get reads the value for key.
func (b *DirBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(b.fs, b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("corrupt entry %s: %w", b.path(key), err)
	}
	return e.Value, true, nil
}

// Set writes the value to a temp file and renames it into place.
func (b *DirBackend) Set(_ context.Context, key string, value []byte) error {
	data, err := json.Marshal(entry{Key: key, Value: value})
	if err != nil {
		return err
	}

	target := b.path(key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := b.fs.Rename(tmp, target); err != nil {
		_ = b.fs.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes the file for key.
func (b *DirBackend) Remove(_ context.Context, key string) error {
	err := b.fs.Remove(b.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Keys reads every entry file to recover its key.
func (b *DirBackend) Keys(_ context.Context) ([]string, error) {
	infos, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		data, err := afero.ReadFile(b.fs, filepath.Join(b.dir, info.Name()))
		if err != nil {
			return nil, err
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("corrupt entry %s: %w", info.Name(), err)
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}
