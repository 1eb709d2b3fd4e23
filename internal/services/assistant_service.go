// Package services – AssistantService
//
// AssistantService answers quilting questions in a chat session. Each turn
// loads the recent transcript, retrieves catalog and guide excerpts from the
// search index, asks the language model for a reply, and stores both sides
// of the exchange. Without a model it answers from retrieval alone.
//
// Sessions are identified by a client-chosen id so anonymous visitors can
// chat; the caller's user id is recorded when signed in.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/llm"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/search"
)

// SystemPrompt frames every model call.
const SystemPrompt = "You are a friendly, knowledgeable quilting expert who helps customers of " +
	"an online quilt pattern shop. Answer questions about quilting techniques, fabric choices, " +
	"pattern recommendations and general quilting advice. Be warm, encouraging and specific. " +
	"When recommending patterns from this shop, consider their difficulty level and style, " +
	"and prefer the catalog excerpts provided to you."

// FallbackReply is stored when the model returns no text.
const FallbackReply = "I'm sorry, I couldn't generate a response."

// NoContextReply is the retrieval-only answer when nothing matched.
const NoContextReply = "I couldn't find anything about that in our pattern catalog or quilting guide. " +
	"Try asking about a pattern name, a difficulty level or a quilting technique."

const (
	defaultHistoryLimit   = 20
	maxHistoryPage        = 50
	defaultMaxPromptRunes = 4000
	defaultContextDocs    = 3
	maxSnippetRunes       = 400
)

var sessionIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AssistantService implements the chat assistant.
type AssistantService struct {
	DB    *gorm.DB
	Index search.Index
	LLM   llm.Completer // nil serves retrieval-only answers

	HistoryLimit   int
	MaxPromptRunes int
	ContextDocs    int
}

// Reply records message in sessionID and returns the assistant's answer.
func (s *AssistantService) Reply(ctx context.Context, caller *auth.Identity, sessionID, message string) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "Reply", trace.WithAttributes(attribute.String("chat.session_id", sessionID)))
	defer span.End()

	if !sessionIDRE.MatchString(sessionID) {
		return nil, ErrInvalidSession
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyPrompt
	}
	maxRunes := s.MaxPromptRunes
	if maxRunes <= 0 {
		maxRunes = defaultMaxPromptRunes
	}
	if utf8.RuneCountInString(message) > maxRunes {
		return nil, ErrTooLong
	}

	var userID *int64
	if caller != nil && caller.UserID > 0 {
		id := caller.UserID
		userID = &id
		span.SetAttributes(attribute.Int64("user.id", id))
	}

	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	// History is read before the new message is stored so it appears once.
	history, err := repo.ListRecentChatMessages(ctx, s.DB, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if _, err := repo.CreateChatMessage(ctx, s.DB, sessionID, userID, domain.ChatRoleUser, message); err != nil {
		return nil, err
	}

	hits := s.retrieve(ctx, message)

	var reply string
	if s.LLM == nil {
		reply = retrievalAnswer(hits)
	} else {
		reply, err = s.LLM.Complete(ctx, buildConversation(history, hits, message))
		switch {
		case errors.Is(err, llm.ErrEmptyReply):
			reply = FallbackReply
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "llm failed")
			log.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("assistant completion failed")
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		case strings.TrimSpace(reply) == "":
			reply = FallbackReply
		}
	}

	out, err := repo.CreateChatMessage(ctx, s.DB, sessionID, userID, domain.ChatRoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("session_id", sessionID).
		Int("history", len(history)).
		Int("context_docs", len(hits)).
		Msg("assistant replied")
	return out, nil
}

// History returns up to limit messages of sessionID, oldest first.
func (s *AssistantService) History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "History", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if !sessionIDRE.MatchString(sessionID) {
		return nil, ErrInvalidSession
	}
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	out, err := repo.ListRecentChatMessages(ctx, s.DB, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ChatMessage{}
	}
	return out, nil
}

func (s *AssistantService) retrieve(ctx context.Context, q string) []search.Result {
	if s.Index == nil {
		return nil
	}
	_, span := otel.Tracer("services/AssistantService").Start(ctx, "retrieve")
	defer span.End()

	k := s.ContextDocs
	if k <= 0 {
		k = defaultContextDocs
	}
	hits := s.Index.TopK(q, k)
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits
}

func buildConversation(history []domain.ChatMessage, hits []search.Result, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	if len(hits) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "Relevant excerpts:\n" + formatHits(hits)})
	}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == domain.ChatRoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

func retrievalAnswer(hits []search.Result) string {
	if len(hits) == 0 {
		return NoContextReply
	}
	return "Here is what I found:\n" + formatHits(hits)
}

func formatHits(hits []search.Result) string {
	var b strings.Builder
	for _, h := range hits {
		b.WriteString("- ")
		if h.Title != "" {
			b.WriteString(h.Title)
			b.WriteString(": ")
		}
		b.WriteString(clipRunes(h.Snippet, maxSnippetRunes))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
