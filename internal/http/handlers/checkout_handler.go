package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/http/middleware"
)

// CheckoutRequest is the JSON payload for starting a checkout. The price is
// always taken from the catalog.
type CheckoutRequest struct {
	PatternID int64 `json:"pattern_id" binding:"required" example:"7"`
}

// CheckoutResponse carries the hosted checkout page URL.
type CheckoutResponse struct {
	URL string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_a1"`
}

// CreateCheckoutSession godoc
// @ID          createCheckoutSession
// @Summary     Start checkout for a pattern
// @Description Returns the hosted checkout URL. A repeated Idempotency-Key returns the same session.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                    false  "Retry key"
// @Param       body             body    handlers.CheckoutRequest  true   "Pattern to buy"
// @Success     200  {object}  handlers.CheckoutResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Pattern not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Payment processor error"
// @Router      /checkout/sessions [post]
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "pattern_id is required")
		return
	}
	who := caller(c)

	// Client keys are scoped so two users (or two patterns) never collide
	// at the processor.
	var idemKey string
	if key, found := middleware.GetIdempotencyKey(c); found && who != nil {
		idemKey = fmt.Sprintf("checkout:%d:%d:%s", who.UserID, req.PatternID, key)
	}

	url, err := h.svc.Checkout.CreateSession(c.Request.Context(), who, req.PatternID, c.GetHeader("Origin"), idemKey)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CheckoutResponse{URL: url})
}
