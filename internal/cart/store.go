package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/pkg/logger"
)

// MaxLineQuantity caps a single line. Order rows store quantities as 32-bit
// integers.
const MaxLineQuantity = math.MaxInt32

var (
	// ErrInvalidCardID is returned for non-positive card ids.
	ErrInvalidCardID = errors.New("card id must be a positive integer")

	// ErrInvalidQuantity is returned when add is called with qty < 1 or a
	// line would exceed MaxLineQuantity.
	ErrInvalidQuantity = fmt.Errorf("quantity must be between 1 and %d", MaxLineQuantity)
)

// Observer receives the cart after every persisted mutation.
type Observer func(ctx context.Context, snapshot model.CartSnapshot)

// Store is one client's cart. Every mutation is a read-modify-write of the
// whole line list under mu, followed by observer notification.
type Store struct {
	mu        *sync.Mutex
	storage   Storage
	observers []Observer
	log       *logger.Logger
}

// NewStore creates a cart over storage with its own lock.
func NewStore(storage Storage, log *logger.Logger, observers ...Observer) *Store {
	return newStore(&sync.Mutex{}, storage, log, observers)
}

func newStore(mu *sync.Mutex, storage Storage, log *logger.Logger, observers []Observer) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{mu: mu, storage: storage, observers: observers, log: log}
}

// Get returns the current lines in insertion order.
func (s *Store) Get(ctx context.Context) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(ctx)
}

// Add increments the line for cardID by qty, appending a new line if needed.
func (s *Store) Add(ctx context.Context, cardID int64, qty int) (model.CartSnapshot, error) {
	if cardID <= 0 {
		return model.CartSnapshot{}, ErrInvalidCardID
	}
	if qty < 1 || qty > MaxLineQuantity {
		return model.CartSnapshot{}, ErrInvalidQuantity
	}

	return s.mutate(ctx, func(lines []model.CartLine) ([]model.CartLine, error) {
		if i := indexOf(lines, cardID); i >= 0 {
			if lines[i].Qty > MaxLineQuantity-qty {
				return nil, ErrInvalidQuantity
			}
			lines[i].Qty += qty
			return lines, nil
		}
		return append(lines, model.CartLine{CardID: cardID, Qty: qty}), nil
	})
}

// SetQuantity sets the line's quantity exactly; qty <= 0 removes the line.
// Setting a positive quantity for a card not in the cart is a no-op.
func (s *Store) SetQuantity(ctx context.Context, cardID int64, qty int) (model.CartSnapshot, error) {
	if qty <= 0 {
		return s.Remove(ctx, cardID)
	}
	if cardID <= 0 {
		return model.CartSnapshot{}, ErrInvalidCardID
	}
	if qty > MaxLineQuantity {
		return model.CartSnapshot{}, ErrInvalidQuantity
	}

	return s.mutate(ctx, func(lines []model.CartLine) ([]model.CartLine, error) {
		if i := indexOf(lines, cardID); i >= 0 {
			lines[i].Qty = qty
		}
		return lines, nil
	})
}

// Remove deletes the line for cardID if present.
func (s *Store) Remove(ctx context.Context, cardID int64) (model.CartSnapshot, error) {
	return s.mutate(ctx, func(lines []model.CartLine) ([]model.CartLine, error) {
		if i := indexOf(lines, cardID); i >= 0 {
			return append(lines[:i], lines[i+1:]...), nil
		}
		return lines, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (model.CartSnapshot, error) {
	return s.mutate(ctx, func([]model.CartLine) ([]model.CartLine, error) {
		return []model.CartLine{}, nil
	})
}

// Deduct subtracts taken from the cart line by line and drops lines that
// reach zero. Lines added after taken was read are kept.
func (s *Store) Deduct(ctx context.Context, taken []model.CartLine) (model.CartSnapshot, error) {
	return s.mutate(ctx, func(lines []model.CartLine) ([]model.CartLine, error) {
		for _, t := range taken {
			if i := indexOf(lines, t.CardID); i >= 0 {
				lines[i].Qty -= t.Qty
			}
		}
		kept := lines[:0]
		for _, l := range lines {
			if l.Qty > 0 {
				kept = append(kept, l)
			}
		}
		return kept, nil
	})
}

func (s *Store) mutate(ctx context.Context, fn func([]model.CartLine) ([]model.CartLine, error)) (model.CartSnapshot, error) {
	s.mu.Lock()
	lines, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return model.CartSnapshot{}, err
	}

	lines, err = fn(lines)
	if err != nil {
		s.mu.Unlock()
		return model.CartSnapshot{}, err
	}
	if err := s.write(ctx, lines); err != nil {
		s.mu.Unlock()
		return model.CartSnapshot{}, err
	}
	snapshot := model.CartSnapshot{Items: cloneLines(lines), Count: model.CountItems(lines)}
	s.mu.Unlock()

	s.notify(ctx, snapshot)
	return snapshot, nil
}

// read loads the persisted lines. A missing or unparsable blob is an
// empty cart; only storage I/O failures are errors.
func (s *Store) read(ctx context.Context) ([]model.CartLine, error) {
	blob, err := s.storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(blob) == 0 {
		return []model.CartLine{}, nil
	}

	var lines []model.CartLine
	if err := json.Unmarshal(blob, &lines); err != nil {
		s.log.Warn(ctx, "discarding unparsable cart", "error", err.Error())
		return []model.CartLine{}, nil
	}
	return normalize(lines), nil
}

func (s *Store) write(ctx context.Context, lines []model.CartLine) error {
	blob, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Save(ctx, blob); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// notify delivers the snapshot to every observer. A panicking observer is
// logged and skipped; the persisted state stands.
func (s *Store) notify(ctx context.Context, snapshot model.CartSnapshot) {
	for _, o := range s.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Warn(ctx, "cart observer failed", "panic", fmt.Sprint(r))
				}
			}()
			o(ctx, model.CartSnapshot{Items: cloneLines(snapshot.Items), Count: snapshot.Count})
		}()
	}
}

// normalize repairs hand-edited or legacy blobs: lines with a bad id or
// qty are dropped, duplicate ids are merged into the first occurrence and
// quantities are capped at MaxLineQuantity.
func normalize(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.CardID <= 0 || l.Qty <= 0 {
			continue
		}
		l.Qty = min(l.Qty, MaxLineQuantity)
		if i := indexOf(out, l.CardID); i >= 0 {
			out[i].Qty = min(out[i].Qty, MaxLineQuantity-l.Qty) + l.Qty
			continue
		}
		out = append(out, l)
	}
	return out
}

func indexOf(lines []model.CartLine, cardID int64) int {
	for i, l := range lines {
		if l.CardID == cardID {
			return i
		}
	}
	return -1
}

func cloneLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}
