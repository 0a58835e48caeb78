package kv

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const (
	lockFileName  = ".lock"
	tmpPrefix     = ".tmp-"
	keySuffix     = ".kv"
	longKeyPrefix = "~"
	maxFileName   = 255
)

var errCorruptKeyHeader = errors.New("kv: corrupt key header")

// LocalStore implements Store using the local file system.
//
// Every key is stored in its own file. A batch is applied under an exclusive
// advisory lock on the directory, so readers in other processes never observe
// half of a Set, but a crash in the middle of a batch can persist a prefix of it.
//
// File names are the base64 of the key. Keys too long for a file name are
// stored under their SHA-256 with the key written in front of the value.
type LocalStore struct {
	root string
	mu   sync.Mutex
	lock *os.File

	longKeys sync.Map // file name -> key
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// The directory is created if missing.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create directory %s: %w", root, err)
	}
	f, err := os.OpenFile(filepath.Join(root, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kv: open lock file: %w", err)
	}
	return &LocalStore{root: root, lock: f}, nil
}

// Root returns the directory backing the store.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) string {
	name, _ := fileName(key)
	return filepath.Join(s.root, name)
}

// fileName maps key to its file name and reports whether it is hashed.
func fileName(key string) (string, bool) {
	name := base64.RawURLEncoding.EncodeToString([]byte(key)) + keySuffix
	if len(name) <= maxFileName {
		return name, false
	}
	sum := sha256.Sum256([]byte(key))
	return longKeyPrefix + hex.EncodeToString(sum[:]) + keySuffix, true
}

func encodeKeyHeader(key string, data []byte) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(key)+len(data))
	buf = binary.AppendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	return append(buf, data...)
}

func decodeKeyHeader(data []byte) (string, []byte, error) {
	n, w := binary.Uvarint(data)
	if w <= 0 || n > uint64(len(data)-w) {
		return "", nil, errCorruptKeyHeader
	}
	end := w + int(n)
	return string(data[w:end]), data[end:], nil
}

// keyOf returns the key stored in the file name, which may be a full path.
func (s *LocalStore) keyOf(name string) (string, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, longKeyPrefix) {
		return keyFromFile(name)
	}
	if !strings.HasSuffix(name, keySuffix) {
		return "", false
	}
	if k, ok := s.longKeys.Load(name); ok {
		return k.(string), true
	}
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return "", false
	}
	key, _, err := decodeKeyHeader(data)
	if err != nil {
		return "", false
	}
	s.longKeys.Store(name, key)
	return key, true
}

func keyFromFile(name string) (string, bool) {
	name = filepath.Base(name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, keySuffix) {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, keySuffix))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *LocalStore) withLock(exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock == nil {
		return ErrClosed
	}
	if err := lockFile(s.lock, exclusive); err != nil {
		return fmt.Errorf("kv: lock %s: %w", s.root, err)
	}
	defer func() {
		_ = unlockFile(s.lock)
	}()
	return fn()
}

// Get reads the files of the given keys.
func (s *LocalStore) Get(ctx context.Context, keys ...string) (Items, error) {
	out := make(Items, len(keys))
	err := s.withLock(false, func() error {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			name, long := fileName(k)
			data, err := os.ReadFile(filepath.Join(s.root, name))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return fmt.Errorf("kv: read %q: %w", k, err)
			}
			if long {
				stored, body, err := decodeKeyHeader(data)
				if err != nil {
					return fmt.Errorf("kv: read %q: %w", k, err)
				}
				if stored != k {
					continue
				}
				data = body
			}
			out[k] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set writes every item through a temporary file and an atomic rename.
func (s *LocalStore) Set(ctx context.Context, items Items) error {
	return s.withLock(true, func() error {
		for _, k := range items.Keys() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.writeFile(k, items[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LocalStore) writeFile(key string, data []byte) error {
	name, long := fileName(key)
	if long {
		data = encodeKeyHeader(key, data)
		s.longKeys.Store(name, key)
	}

	f, err := os.CreateTemp(s.root, tmpPrefix)
	if err != nil {
		return fmt.Errorf("kv: create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("kv: write %q: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("kv: sync %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kv: close %q: %w", key, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.root, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kv: rename %q: %w", key, err)
	}
	return nil
}

// Remove deletes the files of the given keys.
func (s *LocalStore) Remove(ctx context.Context, keys ...string) error {
	return s.withLock(true, func() error {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.Remove(s.path(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("kv: remove %q: %w", k, err)
			}
		}
		return nil
	})
}

// Keys returns all keys matching the prefix.
func (s *LocalStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.withLock(false, func() error {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			return fmt.Errorf("kv: list %s: %w", s.root, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if k, ok := s.keyOf(e.Name()); ok && strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Watch reports changes made to the directory, including those made by
// other processes.
func (s *LocalStore) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("kv: create watcher: %w", err)
	}
	if err := w.Add(s.root); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("kv: watch %s: %w", s.root, err)
	}

	ch := make(chan Change, watchBuffer)
	go func() {
		defer close(ch)
		defer func() {
			_ = w.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				key, ok := s.keyOf(event.Name)
				if !ok {
					continue
				}
				var op Op
				switch {
				case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
					op = OpSet
				case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
					op = OpRemove
				default:
					continue
				}
				select {
				case ch <- Change{Key: key, Op: op}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch, nil
}

// Close releases the directory lock file.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return nil
	}
	err := s.lock.Close()
	s.lock = nil
	return err
}
