package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

// ErrPersistence marks every failure to read or write durable storage.
var ErrPersistence = errors.New("persistence failure")

// Source reads single keys from durable storage.
type Source interface {
	// Lookup decodes the value stored under key into out. It reports
	// false without error when the key (or the whole file) is absent.
	Lookup(key string, out any) (bool, error)
}

// Sink writes single keys to durable storage.
type Sink interface {
	Set(key string, value any) error
}

// File is a key/value store backed by one JSON object on disk. Reads take
// a shared file lock, writes take an exclusive lock and replace the file
// atomically, so a failed write never corrupts previously stored keys.
type File struct {
	path string

	// seen holds a fingerprint of each value this process last wrote or
	// reported through Changes.
	mu   sync.Mutex
	seen map[string][32]byte
}

// NewFile creates a File for the JSON document at path. The file and its
// directory are created lazily on first write.
func NewFile(path string) *File {
	return &File{path: path, seen: make(map[string][32]byte)}
}

// Path returns the location of the backing file.
func (f *File) Path() string {
	return f.path
}

func (f *File) lockPath() string {
	return f.path + ".lock"
}

func (f *File) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create settings directory: %w", ErrPersistence, err)
	}
	return nil
}

// Snapshot reads every stored key. A missing file yields an empty map.
func (f *File) Snapshot() (map[string]json.RawMessage, error) {
	if err := f.ensureDir(); err != nil {
		return nil, err
	}

	lock := flock.New(f.lockPath())
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("%w: failed to acquire read lock: %w", ErrPersistence, err)
	}
	defer lock.Unlock()

	return f.readLocked()
}

// readLocked must be called with the file lock held.
func (f *File) readLocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read settings file: %w", ErrPersistence, err)
	}

	values := map[string]json.RawMessage{}
	if len(data) == 0 {
		return values, nil
	}

	// Hand-edited files may carry comments or trailing commas.
	if err := json.Unmarshal(jsonc.ToJSON(data), &values); err != nil {
		return nil, fmt.Errorf("%w: failed to parse settings file: %w", ErrPersistence, err)
	}
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	return values, nil
}

// Lookup implements Source.
func (f *File) Lookup(key string, out any) (bool, error) {
	values, err := f.Snapshot()
	if err != nil {
		return false, err
	}

	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%w: failed to decode key %q: %w", ErrPersistence, key, err)
	}
	return true, nil
}

// Set stores value under key with a read-modify-write of the whole
// document. Other keys are carried over unchanged.
func (f *File) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to encode key %q: %w", ErrPersistence, key, err)
	}

	if err := f.ensureDir(); err != nil {
		return err
	}

	lock := flock.New(f.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: failed to acquire write lock: %w", ErrPersistence, err)
	}
	defer lock.Unlock()

	values, err := f.readLocked()
	if err != nil {
		return err
	}
	values[key] = encoded

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal settings: %w", ErrPersistence, err)
	}

	if err := WriteFileAtomic(f.path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	f.mu.Lock()
	f.seen[key] = fingerprint(encoded)
	f.mu.Unlock()

	return nil
}

// Changes returns the keys whose stored value differs from the one this
// process last wrote or reported, and records the current values as
// reported. Keys another process removed are not included.
func (f *File) Changes() (map[string]json.RawMessage, error) {
	values, err := f.Snapshot()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	changed := make(map[string]json.RawMessage)
	for key, raw := range values {
		sum := fingerprint(raw)
		if prev, ok := f.seen[key]; ok && prev == sum {
			continue
		}
		f.seen[key] = sum
		changed[key] = raw
	}
	return changed, nil
}

// fingerprint hashes the compact form of a JSON value so formatting and
// comments do not count as changes.
func fingerprint(raw []byte) [32]byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return blake3.Sum256(raw)
	}
	return blake3.Sum256(buf.Bytes())
}

// Get implements get(key, default): the stored value when present,
// otherwise def. On a read error def is returned together with the error.
func Get[T any](src Source, key string, def T) (T, error) {
	var value T
	ok, err := src.Lookup(key, &value)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}
