package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PurchasesResponse lists the caller's completed purchases, newest first.
type PurchasesResponse struct {
	Purchases []PurchaseDTO `json:"purchases"`
}

// PurchasedResponse reports whether the caller owns a pattern.
type PurchasedResponse struct {
	Purchased bool `json:"purchased"`
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     My purchases
// @Tags        Purchases
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.PurchasesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	ctx, who := c.Request.Context(), caller(c)
	if count, maxTS, err := h.svc.Purchases.Stats(ctx, who); err == nil {
		if notModified(c, "purchases", count, maxTS, int(who.UserID)) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.svc.Purchases.ListUserPurchases(ctx, who)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PurchasesResponse{Purchases: toPurchaseDTOs(items)})
}

// HasPurchased godoc
// @ID          hasPurchased
// @Summary     Entitlement check
// @Tags        Purchases
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Pattern ID"
// @Success     200  {object}  handlers.PurchasedResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /patterns/{id}/purchased [get]
func (h *Handlers) HasPurchased(c *gin.Context) {
	owned, err := h.svc.Purchases.HasPurchased(c.Request.Context(), caller(c), pathID(c, "id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PurchasedResponse{Purchased: owned})
}

// DownloadPattern godoc
// @ID          downloadPattern
// @Summary     Download link for a purchased pattern
// @Description Returns a short-lived link to the pattern PDF.
// @Tags        Purchases
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Pattern ID"
// @Success     200  {object}  services.Download
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Not purchased"
// @Failure     404  {object}  handlers.ErrorResponse  "Pattern or file not found"
// @Router      /patterns/{id}/download [get]
func (h *Handlers) DownloadPattern(c *gin.Context) {
	d, err := h.svc.Purchases.Download(c.Request.Context(), caller(c), pathID(c, "id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}
