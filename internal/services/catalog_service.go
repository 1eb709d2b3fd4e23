// Package services – CatalogService
//
// CatalogService serves the public pattern catalog (active patterns only)
// and the admin write paths. Public listings are read through the optional
// Redis cache; every admin write invalidates it and fires OnChange so the
// assistant's retrieval index can be rebuilt.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/cache"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/utils"
)

const (
	defaultFeaturedLimit = 6
	maxTitleRunes        = 255
	maxSlugRunes         = 255
)

// PatternInput is the admin payload for creating a pattern.
type PatternInput struct {
	Title        string
	Slug         string // derived from Title when empty
	Description  string
	Price        int64
	Difficulty   domain.Difficulty
	ImageURL     string
	PDFURL       string
	PDFFileKey   string
	FinishedSize *string
	CategoryID   *int64
	Featured     bool
	Active       *bool // defaults to true
}

// PatternPatch is a partial admin update; nil fields are left unchanged.
type PatternPatch struct {
	Title        *string
	Slug         *string
	Description  *string
	Price        *int64
	Difficulty   *domain.Difficulty
	ImageURL     *string
	PDFURL       *string
	PDFFileKey   *string
	FinishedSize *string
	CategoryID   *int64
	Featured     *bool
	Active       *bool
}

// CategoryInput is the admin payload for creating a category.
type CategoryInput struct {
	Name        string
	Slug        string
	Description string
}

// PatternPage is one page of the public listing.
type PatternPage struct {
	Items []domain.Pattern `json:"items"`
	Total int64            `json:"total"`
}

// CatalogService implements catalog reads and admin writes.
type CatalogService struct {
	DB    *gorm.DB
	Cache *cache.Catalog // nil disables caching

	// OnChange runs after every successful admin write.
	OnChange func(ctx context.Context)

	FeaturedLimit int
}

// NewCatalogService returns a CatalogService with default limits.
func NewCatalogService(db *gorm.DB, c *cache.Catalog) *CatalogService {
	return &CatalogService{DB: db, Cache: c, FeaturedLimit: defaultFeaturedLimit}
}

func (s *CatalogService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/CatalogService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// List returns a page of active patterns, newest first.
func (s *CatalogService) List(ctx context.Context, page, pageSize int) ([]domain.Pattern, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize)
	ctx, span := s.span(ctx, "List", attribute.Int("page", page), attribute.Int("page_size", pageSize))
	defer span.End()

	key := cache.Key("patterns", page, pageSize)
	var cached PatternPage
	if hit, _ := s.Cache.Get(ctx, key, &cached); hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.Items, cached.Total, nil
	}

	total, err := repo.CountActivePatterns(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	items := []domain.Pattern{}
	if total > 0 {
		if items, err = repo.ListActivePatternsPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize); err != nil {
			return nil, 0, err
		}
	}
	s.store(ctx, key, PatternPage{Items: items, Total: total})
	return items, total, nil
}

// Featured returns up to FeaturedLimit patterns that are featured and active.
func (s *CatalogService) Featured(ctx context.Context) ([]domain.Pattern, error) {
	ctx, span := s.span(ctx, "Featured")
	defer span.End()

	key := cache.Key("featured")
	var cached []domain.Pattern
	if hit, _ := s.Cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	limit := s.FeaturedLimit
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	items, err := repo.ListFeaturedPatterns(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, items)
	return items, nil
}

// Get returns an active pattern by id.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Pattern, error) {
	ctx, span := s.span(ctx, "Get", attribute.Int64("pattern.id", id))
	defer span.End()

	if id <= 0 {
		return nil, ErrInvalidPattern
	}
	p, err := repo.GetPattern(ctx, s.DB, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	return p, err
}

// GetBySlug returns an active pattern by slug.
func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (*domain.Pattern, error) {
	ctx, span := s.span(ctx, "GetBySlug", attribute.String("pattern.slug", slug))
	defer span.End()

	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrPatternNotFound
	}
	p, err := repo.GetPatternBySlug(ctx, s.DB, slug)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	return p, err
}

// Categories returns every category ordered by name.
func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := s.span(ctx, "Categories")
	defer span.End()

	key := cache.Key("categories")
	var cached []domain.Category
	if hit, _ := s.Cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	items, err := repo.ListCategories(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, items)
	return items, nil
}

// Stats returns the active pattern count and latest update, for ETags.
func (s *CatalogService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.PatternsStats(ctx, s.DB)
}

// AdminList returns every pattern including inactive ones.
func (s *CatalogService) AdminList(ctx context.Context, caller *auth.Identity) ([]domain.Pattern, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "AdminList")
	defer span.End()
	return repo.ListAllPatterns(ctx, s.DB)
}

// AdminGet returns a pattern by id regardless of its active flag.
func (s *CatalogService) AdminGet(ctx context.Context, caller *auth.Identity, id int64) (*domain.Pattern, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidPattern
	}
	p, err := repo.GetPattern(ctx, s.DB, id, false)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	return p, err
}

// Create validates and inserts a pattern.
func (s *CatalogService) Create(ctx context.Context, caller *auth.Identity, in PatternInput) (*domain.Pattern, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "Create")
	defer span.End()

	p := &domain.Pattern{
		Title:        strings.TrimSpace(in.Title),
		Slug:         strings.TrimSpace(in.Slug),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		Difficulty:   domain.Difficulty(strings.ToLower(string(in.Difficulty))),
		ImageURL:     strings.TrimSpace(in.ImageURL),
		PDFURL:       strings.TrimSpace(in.PDFURL),
		PDFFileKey:   strings.TrimSpace(in.PDFFileKey),
		FinishedSize: trimPtr(in.FinishedSize),
		CategoryID:   in.CategoryID,
		Featured:     in.Featured,
		Active:       in.Active == nil || *in.Active,
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if err := validatePattern(p); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}
	if err := repo.CreatePattern(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	s.changed(ctx)
	log.Ctx(ctx).Info().Int64("pattern_id", p.ID).Str("slug", p.Slug).Msg("pattern created")
	return p, nil
}

// Update applies a partial update and returns the stored pattern.
func (s *CatalogService) Update(ctx context.Context, caller *auth.Identity, id int64, in PatternPatch) (*domain.Pattern, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidPattern
	}
	ctx, span := s.span(ctx, "Update", attribute.Int64("pattern.id", id))
	defer span.End()

	cur, err := repo.GetPattern(ctx, s.DB, id, false)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	next := *cur
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
		fields["title"] = next.Title
	}
	if in.Slug != nil {
		next.Slug = strings.TrimSpace(*in.Slug)
		fields["slug"] = next.Slug
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
		fields["description"] = next.Description
	}
	if in.Price != nil {
		next.Price = *in.Price
		fields["price"] = next.Price
	}
	if in.Difficulty != nil {
		next.Difficulty = domain.Difficulty(strings.ToLower(string(*in.Difficulty)))
		fields["difficulty"] = next.Difficulty
	}
	if in.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*in.ImageURL)
	}
	if in.PDFURL != nil {
		fields["pdf_url"] = strings.TrimSpace(*in.PDFURL)
	}
	if in.PDFFileKey != nil {
		fields["pdf_file_key"] = strings.TrimSpace(*in.PDFFileKey)
	}
	if in.FinishedSize != nil {
		fields["finished_size"] = trimPtr(in.FinishedSize)
	}
	if in.CategoryID != nil {
		next.CategoryID = in.CategoryID
		fields["category_id"] = *in.CategoryID
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
	}
	if in.Featured != nil {
		fields["featured"] = *in.Featured
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}
	if err := validatePattern(&next); err != nil {
		return nil, err
	}

	p, err := repo.UpdatePattern(ctx, s.DB, id, fields)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrSlugTaken
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrPatternNotFound
	case err != nil:
		return nil, err
	}
	s.changed(ctx)
	return p, nil
}

// Deactivate hides a pattern from the public catalog. Purchases keep
// resolving to it.
func (s *CatalogService) Deactivate(ctx context.Context, caller *auth.Identity, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidPattern
	}
	ctx, span := s.span(ctx, "Deactivate", attribute.Int64("pattern.id", id))
	defer span.End()

	if err := repo.SetPatternActive(ctx, s.DB, id, false); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPatternNotFound
		}
		return err
	}
	s.changed(ctx)
	log.Ctx(ctx).Info().Int64("pattern_id", id).Msg("pattern deactivated")
	return nil
}

// AdminCategories returns every category.
func (s *CatalogService) AdminCategories(ctx context.Context, caller *auth.Identity) ([]domain.Category, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return repo.ListCategories(ctx, s.DB)
}

// CreateCategory validates and inserts a category.
func (s *CatalogService) CreateCategory(ctx context.Context, caller *auth.Identity, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return nil, fmt.Errorf("%w: name must be 1-100 characters", ErrInvalidInput)
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugRE.MatchString(slug) || utf8.RuneCountInString(slug) > 100 {
		return nil, fmt.Errorf("%w: slug must be lowercase letters, digits and dashes", ErrInvalidInput)
	}
	c, err := repo.CreateCategory(ctx, s.DB, name, slug, strings.TrimSpace(in.Description))
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return c, nil
}

func (s *CatalogService) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := repo.GetCategory(ctx, s.DB, *id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}

func (s *CatalogService) store(ctx context.Context, key string, v any) {
	if err := s.Cache.Set(ctx, key, v); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (s *CatalogService) changed(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	if s.OnChange != nil {
		s.OnChange(ctx)
	}
}

var slugRE = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func validatePattern(p *domain.Pattern) error {
	switch {
	case p.Title == "" || utf8.RuneCountInString(p.Title) > maxTitleRunes:
		return fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleRunes)
	case !slugRE.MatchString(p.Slug) || utf8.RuneCountInString(p.Slug) > maxSlugRunes:
		return fmt.Errorf("%w: slug must be lowercase letters, digits and dashes", ErrInvalidInput)
	case p.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case p.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case !p.Difficulty.Valid():
		return fmt.Errorf("%w: difficulty must be beginner, intermediate or advanced", ErrInvalidInput)
	}
	return nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds accents ("Étoile" → "etoile") and joins runs
// of letters and digits with single dashes.
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func requireAuth(caller *auth.Identity) error {
	if caller == nil || caller.UserID <= 0 {
		return ErrUnauthenticated
	}
	return nil
}

func requireAdmin(caller *auth.Identity) error {
	if err := requireAuth(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
