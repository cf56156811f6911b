package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"storefront-service/internal/stores/kafka"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Webhook receives Stripe event deliveries. The signature check runs
// before anything else touches the payload; a checkout.session.completed
// event then marks the purchased products sold in the catalog. Stripe
// delivers at least once, so the reconciliation has to tolerate repeats.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	// Limit the request body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	// The signature is computed over the exact bytes, so the body must
	// stay unparsed until it is verified.
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		slog.Error("stripe webhook secret not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Webhook is not configured. Please set STRIPE_WEBHOOK_SECRET."})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), webhookSecret)
	if err != nil {
		// Security relevant: a bad signature is a forged or misrouted
		// delivery, never process it.
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var checkoutSession stripe.CheckoutSession
		err := json.Unmarshal(event.Data.Raw, &checkoutSession)
		if err != nil {
			slog.Error("failed to unmarshal checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
			return
		}

		productIds := splitProductIDs(checkoutSession.Metadata["product_ids"])
		slog.Info("checkout session completed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.SessionID, checkoutSession.ID), slog.String("ProductIDs", strings.Join(productIds, ",")))

		if len(productIds) == 0 {
			// Nothing to reconcile; still acknowledge so Stripe stops
			// redelivering.
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		updated, err := h.c.MarkSold(c.Request.Context(), productIds)
		if err != nil {
			slog.Error("failed to mark products as sold", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.SessionID, checkoutSession.ID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
			return
		}
		if len(updated) == 0 {
			slog.Info("no catalog entries matched, skipping commit", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.SessionID, checkoutSession.ID))
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		slog.Info("marked products as sold", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.SessionID, checkoutSession.ID), slog.String("ProductIDs", strings.Join(updated, ",")))

		if h.k != nil {
			// Notify downstream consumers about each sold piece.
			go h.publishSoldEvents(checkoutSession.ID, updated, traceId)
		}

		c.JSON(http.StatusOK, gin.H{"received": true})

	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("EventType", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *Handler) publishSoldEvents(sessionId string, productIds []string, traceId string) {
	for _, productId := range productIds {
		jsonData, err := json.Marshal(kafka.ProductSoldEvent{
			SessionID: sessionId,
			ProductID: productId,
			SoldAt:    time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal ProductSoldEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}

		err = h.k.ProduceMessage(kafka.TopicProductSold, []byte(sessionId), jsonData)
		if err != nil {
			slog.Error("failed to produce message", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
		slog.Info("message produced", slog.String(logkey.TraceID, traceId), slog.String(logkey.ProductID, productId))
	}
}

func splitProductIDs(metadata string) []string {
	if metadata == "" {
		return nil
	}
	ids := []string{}
	for _, id := range strings.Split(metadata, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
