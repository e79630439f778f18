package cart

import (
	"context"
	"errors"
	"hash/fnv"
	"regexp"
	"sync"
	"time"

	"ygo-storefront-api/pkg/logger"
)

const lockStripes = 64

// ErrInvalidClientID is returned for missing or unsafe client identifiers.
var ErrInvalidClientID = errors.New("client id must be 1-128 characters of [A-Za-z0-9._:-]")

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Manager hands out per-client carts. Stores for the same client share a
// lock stripe, so concurrent requests from one client never interleave
// their read-modify-write cycles.
type Manager struct {
	backend   Backend
	observers []Observer
	log       *logger.Logger
	locks     [lockStripes]sync.Mutex
}

// NewManager creates a manager over backend.
func NewManager(backend Backend, log *logger.Logger, observers ...Observer) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{backend: backend, observers: observers, log: log}
}

// For returns the cart of clientID.
func (m *Manager) For(clientID string) (*Store, error) {
	if !clientIDPattern.MatchString(clientID) || clientID == "." || clientID == ".." {
		return nil, ErrInvalidClientID
	}

	return newStore(m.lockFor(clientID), m.backend.For(clientID), m.log, m.observers), nil
}

// idleExpirer is implemented by backends without native expiry.
type idleExpirer interface {
	IdleClients(ctx context.Context, cutoff time.Time) ([]string, error)
	ExpireIdle(clientID string, cutoff time.Time) (bool, error)
}

var _ idleExpirer = (*FileBackend)(nil)

// Sweep removes carts not written for olderThan and returns how many were
// removed. Each removal holds the client's lock. Backends with native
// expiry report zero.
func (m *Manager) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	expirer, ok := m.backend.(idleExpirer)
	if !ok {
		return 0, nil
	}

	cutoff := time.Now().Add(-olderThan)
	clients, err := expirer.IdleClients(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, clientID := range clients {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		mu := m.lockFor(clientID)
		mu.Lock()
		expired, err := expirer.ExpireIdle(clientID, cutoff)
		mu.Unlock()
		if err != nil {
			return removed, err
		}
		if expired {
			removed++
		}
	}
	return removed, nil
}

func (m *Manager) lockFor(clientID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return &m.locks[h.Sum32()%lockStripes]
}
