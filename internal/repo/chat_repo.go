// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for assistant
// chat transcripts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// CreateChatMessage appends a message to a chat session.
func CreateChatMessage(ctx context.Context, db *gorm.DB, sessionID string, userID *int64, role domain.ChatRole, content string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListRecentChatMessages returns the last limit messages of a session in
// chronological order (oldest first).
func ListRecentChatMessages(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
