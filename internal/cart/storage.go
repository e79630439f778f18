package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StorageKey is the well-known key the serialized line list lives under.
const StorageKey = "cart_items"

// Storage persists one client's serialized cart as a single blob.
// Load returns (nil, nil) when nothing has been saved yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// Backend hands out the Storage of one client.
type Backend interface {
	For(clientID string) Storage
}

// MemoryBackend keeps blobs in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

// For implements Backend.
func (b *MemoryBackend) For(clientID string) Storage {
	return memoryStorage{backend: b, key: clientID}
}

// Put overwrites a client's raw blob.
func (b *MemoryBackend) Put(clientID string, blob []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[clientID] = append([]byte(nil), blob...)
}

type memoryStorage struct {
	backend *MemoryBackend
	key     string
}

func (s memoryStorage) Load(ctx context.Context) ([]byte, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	blob, ok := s.backend.blobs[s.key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (s memoryStorage) Save(ctx context.Context, blob []byte) error {
	s.backend.Put(s.key, blob)
	return nil
}

// FileBackend stores each client's cart as <dir>/<clientID>/cart_items.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// For implements Backend.
func (b *FileBackend) For(clientID string) Storage {
	return fileStorage{path: filepath.Join(b.dir, clientID, StorageKey+".json")}
}

type fileStorage struct {
	path string
}

func (s fileStorage) Load(ctx context.Context) ([]byte, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return blob, err
}

// Save replaces the file atomically through a rename.
func (s fileStorage) Save(ctx context.Context, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), StorageKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

// RedisBackend stores carts under <prefix><clientID>:cart_items.
type RedisBackend struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBackend wraps a shared client. A zero ttl keeps carts forever.
func NewRedisBackend(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "ygo:cart:"
	}
	return &RedisBackend{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// For implements Backend.
func (b *RedisBackend) For(clientID string) Storage {
	return redisStorage{backend: b, key: b.keyPrefix + clientID + ":" + StorageKey}
}

type redisStorage struct {
	backend *RedisBackend
	key     string
}

func (s redisStorage) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.backend.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return blob, err
}

func (s redisStorage) Save(ctx context.Context, blob []byte) error {
	return s.backend.client.Set(ctx, s.key, blob, s.backend.ttl).Err()
}

// IdleClients lists the clients whose cart file was last written before
// cutoff.
func (b *FileBackend) IdleClients(ctx context.Context, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart dir: %w", err)
	}

	var idle []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return idle, err
		}
		if !e.IsDir() || !clientIDPattern.MatchString(e.Name()) {
			continue
		}
		if b.idleSince(e.Name(), cutoff) {
			idle = append(idle, e.Name())
		}
	}
	return idle, nil
}

// ExpireIdle removes the cart of clientID if it is still idle at cutoff.
// Callers hold the client's lock so no mutation is between read and write.
func (b *FileBackend) ExpireIdle(clientID string, cutoff time.Time) (bool, error) {
	if !b.idleSince(clientID, cutoff) {
		return false, nil
	}
	dir := filepath.Join(b.dir, clientID)
	if err := os.Remove(filepath.Join(dir, StorageKey+".json")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("remove cart %s: %w", clientID, err)
	}
	_ = os.Remove(dir)
	return true, nil
}

func (b *FileBackend) idleSince(clientID string, cutoff time.Time) bool {
	info, err := os.Stat(filepath.Join(b.dir, clientID, StorageKey+".json"))
	return err == nil && info.ModTime().Before(cutoff)
}
