package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/pkg/logger"
)

// maxQuantity keeps quantities inside every store's integer column.
const maxQuantity = math.MaxInt32

var (
	// ErrInvalidInput marks a request that is malformed as a whole.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidOrder marks an order that cannot be accepted.
	ErrInvalidOrder = errors.New("invalid order")
)

// ApplyResult is the outcome of a reconciliation batch.
type ApplyResult struct {
	Applied   map[string]int          `json:"applied"`
	Inventory []model.InventoryRecord `json:"inventory"`
}

// InventoryService manages the quantity-on-hand ledger.
type InventoryService struct {
	repo    repository.InventoryRepository
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewInventoryService creates an inventory service. repo may be nil, in
// which case the ledger is always empty and updates are accepted as no-ops.
func NewInventoryService(repo repository.InventoryRepository, m *metrics.Metrics, log *logger.Logger) *InventoryService {
	if log == nil {
		log = logger.Nop()
	}
	return &InventoryService{repo: repo, metrics: m, log: log.Component("inventory")}
}

// Enabled reports whether a backing store is attached.
func (s *InventoryService) Enabled() bool {
	return s.repo != nil
}

// List returns ledger rows, optionally restricted to one card.
func (s *InventoryService) List(ctx context.Context, filter model.InventoryFilter) ([]model.InventoryRecord, error) {
	if s.repo == nil {
		return []model.InventoryRecord{}, nil
	}
	return s.repo.ListInventory(ctx, filter)
}

// ApplyUpdates overwrites the quantity of every valid entry. Entries with a
// malformed key or a quantity that is not a finite number >= 0 are skipped
// without failing the batch. Fractional quantities are floored.
func (s *InventoryService) ApplyUpdates(ctx context.Context, updates map[string]json.RawMessage) (*ApplyResult, error) {
	if s.repo == nil {
		return &ApplyResult{Applied: map[string]int{}, Inventory: []model.InventoryRecord{}}, nil
	}

	rawKeys := make([]string, 0, len(updates))
	for k := range updates {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	applied := make(map[string]int, len(updates))
	batch := make([]model.InventoryUpdate, 0, len(updates))
	index := make(map[model.VariantKey]int, len(updates))
	skipped := 0

	for _, raw := range rawKeys {
		key, err := model.ParseVariantKey(raw)
		if err != nil {
			skipped++
			s.log.Debug(ctx, "skipping inventory update", "key", raw, "reason", err.Error())
			continue
		}
		qty, err := parseQuantity(updates[raw])
		if err != nil {
			skipped++
			s.log.Debug(ctx, "skipping inventory update", "key", raw, "reason", err.Error())
			continue
		}

		// "5::" and "5::N/A" name the same row; the later key in sort order wins.
		if i, ok := index[key]; ok {
			batch[i].Quantity = qty
		} else {
			index[key] = len(batch)
			batch = append(batch, model.InventoryUpdate{Key: key, Quantity: qty})
		}
		applied[key.String()] = qty
	}

	if len(batch) > 0 {
		if err := s.repo.ApplyQuantities(ctx, batch); err != nil {
			return nil, fmt.Errorf("apply inventory updates: %w", err)
		}
	}
	s.metrics.AddInventoryUpdates(len(batch), skipped)
	s.log.Info(ctx, "inventory updates applied", "applied", len(batch), "skipped", skipped)

	inventory, err := s.repo.ListInventory(ctx, model.InventoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return &ApplyResult{Applied: applied, Inventory: inventory}, nil
}

// parseQuantity accepts a JSON number or a numeric string.
func parseQuantity(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("quantity is missing")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("quantity is not a string: %w", err)
		}
		text = strings.TrimSpace(text)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", text)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("quantity %q is not finite", text)
	}
	if f < 0 {
		return 0, fmt.Errorf("quantity %q is negative", text)
	}
	f = math.Floor(f)
	if f > maxQuantity {
		return 0, fmt.Errorf("quantity %q is too large", text)
	}
	return int(f), nil
}
