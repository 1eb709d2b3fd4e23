package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/http/middleware"
	"github.com/tbourn/quilt-shop-backend/internal/services"
)

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Payment processor webhook
// @Description Verifies the Stripe-Signature header over the raw body and records completed checkouts.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature  header  string  true  "Processor signature"
// @Success     200  {object}  map[string]bool  "{\"received\": true} or {\"verified\": true} for test events"
// @Failure     400  {string}  string  "No signature | Webhook Error: <reason>"
// @Failure     500  {object}  map[string]string  "{\"error\": \"Webhook handler failed\"}"
// @Router      /api/stripe/webhook [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.String(http.StatusBadRequest, "No signature")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.opts.WebhookMaxBytes+1))
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: unreadable body")
		return
	}
	if int64(len(payload)) > h.opts.WebhookMaxBytes {
		c.String(http.StatusRequestEntityTooLarge, "Webhook Error: payload too large")
		return
	}

	outcome, err := h.svc.Webhooks.Handle(c.Request.Context(), payload, sig)
	var sigErr *services.SignatureError
	switch {
	case errors.Is(err, services.ErrMissingSignature):
		c.String(http.StatusBadRequest, "No signature")
	case errors.As(err, &sigErr):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook signature rejected")
		c.String(http.StatusBadRequest, "Webhook Error: "+sigErr.Error())
	case err != nil:
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Msg("webhook handler failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler failed"})
	case outcome == domain.WebhookTest:
		c.JSON(http.StatusOK, gin.H{"verified": true})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
