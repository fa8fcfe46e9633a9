package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/biki-cloud/online-shop/internal/auth"
	"github.com/biki-cloud/online-shop/internal/payment"
	"github.com/biki-cloud/online-shop/pkg/ctxmanage"
	"github.com/biki-cloud/online-shop/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// Checkout turns the caller's active cart into a pending order and responds
// with the stripe-hosted payment page to redirect the user to.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusUnauthorized})
		return
	}

	url, err := h.pay.InitiateCheckout(c.Request.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrEmptyCart):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Cart is empty", "redirect": "/cart"})
		case errors.Is(err, payment.ErrPaymentProvider):
			slog.Error("stripe checkout session failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Payment provider unavailable, please retry"})
		default:
			slog.Error("checkout failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to start checkout"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout_session_url": url})
}

// CheckoutComplete handles the user's return from the stripe payment page.
// It reconciles eagerly instead of waiting for the webhook so the response
// reflects the final order status.
func (h *Handler) CheckoutComplete(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.Redirect(http.StatusSeeOther, "/cart")
		return
	}

	order, err := h.pay.HandleReturn(c.Request.Context(), sessionID)
	if err != nil {
		slog.Error("checkout return reconciliation failed", slog.String(logkey.TraceID, traceId),
			slog.String("Session ID", sessionID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Could not confirm payment status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
	})
}
