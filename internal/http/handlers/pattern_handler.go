// Catalog HTTP handlers.
//
//   - GET /patterns              (paginated, ETag support)
//   - GET /patterns/featured
//   - GET /patterns/{id}
//   - GET /patterns/slug/{slug}
//   - GET /categories
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// ListPatternsResponse wraps a page of patterns and pagination information.
type ListPatternsResponse struct {
	Patterns   []PatternDTO `json:"patterns"`
	Pagination Pagination   `json:"pagination"`
}

// PatternsResponse wraps an unpaginated pattern list.
type PatternsResponse struct {
	Patterns []PatternDTO `json:"patterns"`
}

// CategoriesResponse wraps the category list.
type CategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// ListPatterns godoc
// @ID          listPatterns
// @Summary     List active patterns (paginated)
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Patterns
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPatternsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /patterns [get]
func (h *Handlers) ListPatterns(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Catalog.Stats(ctx); err == nil {
		if notModified(c, "patterns", count, maxTS, page, pageSize) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.Catalog.List(ctx, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListPatternsResponse{
		Patterns:   toPatternDTOs(items),
		Pagination: newPagination(page, pageSize, total),
	})
}

// FeaturedPatterns godoc
// @ID          featuredPatterns
// @Summary     Featured patterns
// @Tags        Patterns
// @Produce     json
// @Success     200  {object}  handlers.PatternsResponse
// @Router      /patterns/featured [get]
func (h *Handlers) FeaturedPatterns(c *gin.Context) {
	items, err := h.svc.Catalog.Featured(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PatternsResponse{Patterns: toPatternDTOs(items)})
}

// GetPattern godoc
// @ID          getPattern
// @Summary     Pattern by id
// @Tags        Patterns
// @Produce     json
// @Param       id   path      int  true  "Pattern ID"  example(7)
// @Success     200  {object}  handlers.PatternDTO
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Pattern not found"
// @Router      /patterns/{id} [get]
func (h *Handlers) GetPattern(c *gin.Context) {
	p, err := h.svc.Catalog.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, toPatternDTO(p))
}

// GetPatternBySlug godoc
// @ID          getPatternBySlug
// @Summary     Pattern by slug
// @Tags        Patterns
// @Produce     json
// @Param       slug  path      string  true  "Pattern slug"  example(log-cabin-throw)
// @Success     200   {object}  handlers.PatternDTO
// @Failure     404   {object}  handlers.ErrorResponse  "Pattern not found"
// @Router      /patterns/slug/{slug} [get]
func (h *Handlers) GetPatternBySlug(c *gin.Context) {
	p, err := h.svc.Catalog.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, toPatternDTO(p))
}

// ListCategories godoc
// @ID          listCategories
// @Summary     Categories
// @Tags        Patterns
// @Produce     json
// @Success     200  {object}  handlers.CategoriesResponse
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	items, err := h.svc.Catalog.Categories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Category{}
	}
	ok(c, http.StatusOK, CategoriesResponse{Categories: items})
}
