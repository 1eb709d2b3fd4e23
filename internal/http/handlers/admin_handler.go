// Admin HTTP handlers. The router mounts these behind RequireAdmin; the
// services check the role again.
//
//   - GET    /admin/patterns
//   - POST   /admin/patterns
//   - PUT    /admin/patterns/{id}
//   - DELETE /admin/patterns/{id}        (deactivates)
//   - GET    /admin/categories
//   - POST   /admin/categories
//   - POST   /admin/uploads              (multipart, field "file")
//   - POST   /admin/purchases/reconcile
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/services"
)

// AdminPatternRequest is the JSON payload for creating a pattern. Slug is
// derived from the title when empty; Active defaults to true.
type AdminPatternRequest struct {
	Title        string  `json:"title" binding:"required" example:"Log Cabin Throw"`
	Slug         string  `json:"slug" example:"log-cabin-throw"`
	Description  string  `json:"description" binding:"required"`
	Price        int64   `json:"price" example:"1999"`
	Difficulty   string  `json:"difficulty" binding:"required" example:"beginner"`
	ImageURL     string  `json:"image_url"`
	PDFURL       string  `json:"pdf_url"`
	PDFFileKey   string  `json:"pdf_file_key" example:"pdfs/4b0c6f1e.pdf"`
	FinishedSize *string `json:"finished_size" example:"60 x 72 in"`
	CategoryID   *int64  `json:"category_id"`
	Featured     bool    `json:"featured"`
	Active       *bool   `json:"active"`
}

// AdminPatternPatch is the JSON payload for a partial update. Omitted
// fields are left unchanged.
type AdminPatternPatch struct {
	Title        *string `json:"title"`
	Slug         *string `json:"slug"`
	Description  *string `json:"description"`
	Price        *int64  `json:"price"`
	Difficulty   *string `json:"difficulty"`
	ImageURL     *string `json:"image_url"`
	PDFURL       *string `json:"pdf_url"`
	PDFFileKey   *string `json:"pdf_file_key"`
	FinishedSize *string `json:"finished_size"`
	CategoryID   *int64  `json:"category_id"`
	Featured     *bool   `json:"featured"`
	Active       *bool   `json:"active"`
}

// AdminPatternsResponse lists every pattern, including inactive ones and
// deliverable locations.
type AdminPatternsResponse struct {
	Patterns []domain.Pattern `json:"patterns"`
}

// CategoryRequest is the JSON payload for creating a category.
type CategoryRequest struct {
	Name        string `json:"name" binding:"required" example:"Baby Quilts"`
	Slug        string `json:"slug" example:"baby-quilts"`
	Description string `json:"description"`
}

// UploadResponse locates a stored upload.
type UploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key" example:"images/4b0c6f1e.png"`
}

// ReconcileRequest names a checkout session to re-apply.
type ReconcileRequest struct {
	SessionID string `json:"session_id" binding:"required" example:"cs_test_a1"`
}

// AdminListPatterns godoc
// @ID          adminListPatterns
// @Summary     List all patterns
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.AdminPatternsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Router      /admin/patterns [get]
func (h *Handlers) AdminListPatterns(c *gin.Context) {
	items, err := h.svc.Catalog.AdminList(c.Request.Context(), caller(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Pattern{}
	}
	ok(c, http.StatusOK, AdminPatternsResponse{Patterns: items})
}

// AdminCreatePattern godoc
// @ID          adminCreatePattern
// @Summary     Create a pattern
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.AdminPatternRequest  true  "Pattern"
// @Success     201   {object}  domain.Pattern
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Slug already in use"
// @Router      /admin/patterns [post]
func (h *Handlers) AdminCreatePattern(c *gin.Context) {
	var req AdminPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title, description and difficulty are required")
		return
	}
	p, err := h.svc.Catalog.Create(c.Request.Context(), caller(c), services.PatternInput{
		Title:        req.Title,
		Slug:         req.Slug,
		Description:  req.Description,
		Price:        req.Price,
		Difficulty:   domain.Difficulty(req.Difficulty),
		ImageURL:     req.ImageURL,
		PDFURL:       req.PDFURL,
		PDFFileKey:   req.PDFFileKey,
		FinishedSize: req.FinishedSize,
		CategoryID:   req.CategoryID,
		Featured:     req.Featured,
		Active:       req.Active,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// AdminUpdatePattern godoc
// @ID          adminUpdatePattern
// @Summary     Update a pattern
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                         true  "Pattern ID"
// @Param       body  body      handlers.AdminPatternPatch  true  "Fields to change"
// @Success     200   {object}  domain.Pattern
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Pattern not found"
// @Router      /admin/patterns/{id} [put]
func (h *Handlers) AdminUpdatePattern(c *gin.Context) {
	var req AdminPatternPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	patch := services.PatternPatch{
		Title:        req.Title,
		Slug:         req.Slug,
		Description:  req.Description,
		Price:        req.Price,
		ImageURL:     req.ImageURL,
		PDFURL:       req.PDFURL,
		PDFFileKey:   req.PDFFileKey,
		FinishedSize: req.FinishedSize,
		CategoryID:   req.CategoryID,
		Featured:     req.Featured,
		Active:       req.Active,
	}
	if req.Difficulty != nil {
		d := domain.Difficulty(*req.Difficulty)
		patch.Difficulty = &d
	}
	p, err := h.svc.Catalog.Update(c.Request.Context(), caller(c), pathID(c, "id"), patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// AdminDeletePattern godoc
// @ID          adminDeletePattern
// @Summary     Deactivate a pattern
// @Description Hides the pattern from the public catalog. Existing purchases keep working.
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path      int  true  "Pattern ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Pattern not found"
// @Router      /admin/patterns/{id} [delete]
func (h *Handlers) AdminDeletePattern(c *gin.Context) {
	if err := h.svc.Catalog.Deactivate(c.Request.Context(), caller(c), pathID(c, "id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// AdminListCategories godoc
// @ID          adminListCategories
// @Summary     List categories
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.CategoriesResponse
// @Router      /admin/categories [get]
func (h *Handlers) AdminListCategories(c *gin.Context) {
	items, err := h.svc.Catalog.AdminCategories(c.Request.Context(), caller(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Category{}
	}
	ok(c, http.StatusOK, CategoriesResponse{Categories: items})
}

// AdminCreateCategory godoc
// @ID          adminCreateCategory
// @Summary     Create a category
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CategoryRequest  true  "Category"
// @Success     201   {object}  domain.Category
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Slug already in use"
// @Router      /admin/categories [post]
func (h *Handlers) AdminCreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	cat, err := h.svc.Catalog.CreateCategory(c.Request.Context(), caller(c), services.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// AdminUpload godoc
// @ID          adminUpload
// @Summary     Upload an image or pattern PDF
// @Tags        Admin
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "Image (jpeg, png, webp, gif) or PDF"
// @Success     201   {object}  handlers.UploadResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     413   {object}  handlers.ErrorResponse  "File too large"
// @Failure     415   {object}  handlers.ErrorResponse  "Unsupported file type"
// @Failure     503   {object}  handlers.ErrorResponse  "Storage not configured"
// @Router      /admin/uploads [post]
func (h *Handlers) AdminUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			failErr(c, services.ErrTooLarge)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	obj, err := h.svc.Uploads.Upload(c.Request.Context(), caller(c), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{URL: obj.URL, Key: obj.Key})
}

// AdminReconcile godoc
// @ID          adminReconcile
// @Summary     Reconcile a checkout session
// @Description Fetches the session from the processor and records the purchase when it is paid.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ReconcileRequest  true  "Session"
// @Success     200   {object}  domain.Purchase
// @Failure     409   {object}  handlers.ErrorResponse  "Session not paid"
// @Failure     502   {object}  handlers.ErrorResponse  "Payment processor error"
// @Router      /admin/purchases/reconcile [post]
func (h *Handlers) AdminReconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}
	p, err := h.svc.Purchases.ReconcileSession(c.Request.Context(), caller(c), req.SessionID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
