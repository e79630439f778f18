package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/pkg/logger"
)

// DefaultSyncBatchSize is how many card ids one upstream read carries.
const DefaultSyncBatchSize = 50

// CardBatchSource reads full card records for a set of ids.
type CardBatchSource interface {
	Cards(ctx context.Context, ids []int64) ([]catalog.Card, error)
}

// CatalogSync mirrors catalog display data (card name, set code of the
// printing with the row's rarity) onto ledger rows. Quantities are never
// touched and rows are never created.
type CatalogSync struct {
	repo      repository.InventoryRepository
	cards     CardBatchSource
	batchSize int
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewCatalogSync creates a sync. repo may be nil, in which case Run is a no-op.
func NewCatalogSync(repo repository.InventoryRepository, cards CardBatchSource, batchSize int, m *metrics.Metrics, log *logger.Logger) *CatalogSync {
	if batchSize <= 0 {
		batchSize = DefaultSyncBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogSync{
		repo:      repo,
		cards:     cards,
		batchSize: batchSize,
		metrics:   m,
		log:       log.Component("catalog_sync"),
	}
}

// Run refreshes every ledger row and returns how many rows changed. An
// upstream failure stops the run; batches already written stay written.
func (s *CatalogSync) Run(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}

	records, err := s.repo.ListInventory(ctx, model.InventoryFilter{})
	if err != nil {
		return 0, fmt.Errorf("list inventory: %w", err)
	}

	byCard := make(map[int64][]model.InventoryRecord)
	for _, rec := range records {
		byCard[rec.CardID] = append(byCard[rec.CardID], rec)
	}
	ids := make([]int64, 0, len(byCard))
	for id := range byCard {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var updated int64
	for start := 0; start < len(ids); start += s.batchSize {
		batch := ids[start:min(start+s.batchSize, len(ids))]

		cards, err := s.fetch(ctx, batch)
		if err != nil {
			s.metrics.AddCatalogSync(updated)
			return updated, fmt.Errorf("fetch cards: %w", err)
		}

		var details []model.VariantDetail
		for _, card := range cards {
			for _, rec := range byCard[card.ID] {
				d := model.VariantDetail{Key: rec.Key, SetCode: card.SetCodeFor(rec.Rarity), CardName: card.Name}
				if d.SetCode != rec.SetCode || d.CardName != rec.CardName {
					details = append(details, d)
				}
			}
		}

		n, err := s.repo.AnnotateInventory(ctx, details)
		if err != nil {
			s.metrics.AddCatalogSync(updated)
			return updated, fmt.Errorf("annotate inventory: %w", err)
		}
		updated += n
	}

	s.metrics.AddCatalogSync(updated)
	s.log.Info(ctx, "catalog sync finished", "cards", len(ids), "rows_updated", updated)
	return updated, nil
}

// fetch reads one batch. When the upstream source knows none of the ids
// the batch is split so a single retired card cannot hide the rest.
func (s *CatalogSync) fetch(ctx context.Context, ids []int64) ([]catalog.Card, error) {
	cards, err := s.cards.Cards(ctx, ids)
	if !errors.Is(err, catalog.ErrCardNotFound) {
		return cards, err
	}
	if len(ids) == 1 {
		s.log.Debug(ctx, "card unknown upstream", "card_id", ids[0])
		return nil, nil
	}

	mid := len(ids) / 2
	left, err := s.fetch(ctx, ids[:mid])
	if err != nil {
		return nil, err
	}
	right, err := s.fetch(ctx, ids[mid:])
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}
