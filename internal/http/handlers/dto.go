package handlers

import (
	"time"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/utils"
)

// PatternDTO is the public view of a pattern. Deliverable locations are
// never included.
type PatternDTO struct {
	ID           int64            `json:"id" example:"7"`
	Title        string           `json:"title" example:"Log Cabin Throw"`
	Slug         string           `json:"slug" example:"log-cabin-throw"`
	Description  string           `json:"description"`
	Price        int64            `json:"price" example:"1999"`
	Difficulty   string           `json:"difficulty" example:"beginner"`
	ImageURL     string           `json:"image_url"`
	FinishedSize *string          `json:"finished_size,omitempty" example:"60 x 72 in"`
	CategoryID   *int64           `json:"category_id,omitempty"`
	Category     *domain.Category `json:"category,omitempty"`
	Featured     bool             `json:"featured"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toPatternDTO(p *domain.Pattern) PatternDTO {
	return PatternDTO{
		ID:           p.ID,
		Title:        p.Title,
		Slug:         p.Slug,
		Description:  p.Description,
		Price:        p.Price,
		Difficulty:   string(p.Difficulty),
		ImageURL:     p.ImageURL,
		FinishedSize: p.FinishedSize,
		CategoryID:   p.CategoryID,
		Category:     p.Category,
		Featured:     p.Featured,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toPatternDTOs(ps []domain.Pattern) []PatternDTO {
	out := make([]PatternDTO, 0, len(ps))
	for i := range ps {
		out = append(out, toPatternDTO(&ps[i]))
	}
	return out
}

// PurchaseDTO is a completed purchase with its pattern.
type PurchaseDTO struct {
	ID          int64       `json:"id"`
	PatternID   int64       `json:"pattern_id" example:"7"`
	Amount      int64       `json:"amount" example:"1999"`
	Status      string      `json:"status" example:"completed"`
	PurchasedAt time.Time   `json:"purchased_at"`
	Pattern     *PatternDTO `json:"pattern,omitempty"`
}

func toPurchaseDTOs(ps []domain.Purchase) []PurchaseDTO {
	out := make([]PurchaseDTO, 0, len(ps))
	for _, p := range ps {
		d := PurchaseDTO{
			ID:          p.ID,
			PatternID:   p.PatternID,
			Amount:      p.Amount,
			Status:      string(p.Status),
			PurchasedAt: p.PurchasedAt,
		}
		if p.Pattern != nil {
			pd := toPatternDTO(p.Pattern)
			d.Pattern = &pd
		}
		out = append(out, d)
	}
	return out
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
