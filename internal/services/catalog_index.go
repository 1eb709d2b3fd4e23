package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/search"
)

// IndexBuilder rebuilds the assistant's retrieval index from the active
// catalog plus the static knowledge guide.
type IndexBuilder struct {
	DB    *gorm.DB
	Live  *search.Live
	Guide []search.Document
}

// Rebuild loads active patterns and swaps a fresh index into Live. On error
// the previous index keeps serving.
func (b *IndexBuilder) Rebuild(ctx context.Context) error {
	patterns, err := repo.ListActivePatternsPage(ctx, b.DB, 0, 0)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("assistant index rebuild failed")
		return err
	}
	docs := make([]search.Document, 0, len(patterns)+len(b.Guide))
	for i := range patterns {
		docs = append(docs, PatternDocument(&patterns[i]))
	}
	docs = append(docs, b.Guide...)

	b.Live.Swap(search.NewIndex(docs))
	log.Ctx(ctx).Info().Int("patterns", len(patterns)).Int("docs", b.Live.Len()).Msg("assistant index rebuilt")
	return nil
}

// OnChange adapts Rebuild to CatalogService.OnChange.
func (b *IndexBuilder) OnChange(ctx context.Context) { _ = b.Rebuild(ctx) }

// PatternDocument renders a pattern for retrieval. Paid file locations are
// never included.
func PatternDocument(p *domain.Pattern) search.Document {
	parts := []string{
		strings.TrimSpace(p.Description),
		fmt.Sprintf("Difficulty: %s.", p.Difficulty),
		fmt.Sprintf("Price: %d.%02d.", p.Price/100, p.Price%100),
	}
	if p.FinishedSize != nil && *p.FinishedSize != "" {
		parts = append(parts, "Finished size: "+*p.FinishedSize+".")
	}
	if p.Category != nil {
		parts = append(parts, "Category: "+p.Category.Name+".")
	}
	return search.Document{
		ID:    fmt.Sprintf("pattern:%d", p.ID),
		Title: p.Title,
		Text:  strings.Join(parts, " "),
	}
}
