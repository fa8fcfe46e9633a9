package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/biki-cloud/online-shop/internal/payment"
	"github.com/biki-cloud/online-shop/pkg/ctxmanage"
	"github.com/biki-cloud/online-shop/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Webhook is the asynchronous reconciliation entry point. Stripe signs every
// delivery; the payload is only trusted after the signature verifies. Stripe
// retries deliveries, so everything downstream must be idempotent.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		slog.Error("stripe webhook secret not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook secret not configured"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	ctx := c.Request.Context()

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			slog.Error("failed to unmarshal checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.finishReconcile(c, traceId, h.pay.HandleSessionCompleted(ctx, &session))

	case "checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			slog.Error("failed to unmarshal checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.finishReconcile(c, traceId, h.pay.HandleSessionFailed(ctx, &session))

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			slog.Error("failed to unmarshal checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.finishReconcile(c, traceId, h.pay.HandleSessionExpired(ctx, &session))

	case "setup_intent.succeeded":
		var setupIntent stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &setupIntent); err != nil {
			slog.Error("failed to unmarshal setup intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		userID := setupIntent.Metadata["user_id"]
		if userID != "" && setupIntent.Customer != nil {
			if err := h.u.UpdateStripeCustomerID(ctx, userID, setupIntent.Customer.ID); err != nil {
				slog.Error("failed to store stripe customer id", slog.String(logkey.TraceID, traceId),
					slog.String(logkey.UserID, userID), slog.String(logkey.ERROR, err.Error()))
			}
		}
		c.Status(http.StatusOK)

	default:
		slog.Info("Unhandled event type", slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
	}
}

// finishReconcile maps reconciliation outcomes to webhook responses. A
// notification that cannot be correlated to an order is logged and ACKed so
// stripe stops redelivering something we can never process.
func (h *Handler) finishReconcile(c *gin.Context, traceId string, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	if errors.Is(err, payment.ErrCorrelation) {
		slog.Error("discarding uncorrelatable notification", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusOK, gin.H{"message": "notification discarded"})
		return
	}
	slog.Error("webhook reconciliation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
}
