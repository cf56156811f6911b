package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// CheckoutItem is one cart line as the browser sends it: price in major
// currency units, quantity defaulting to 1.
type CheckoutItem struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gt=0"`
	Currency    string  `json:"currency"`
	Quantity    int64   `json:"quantity" validate:"gte=0"`
}

type CheckoutRequest struct {
	Items      []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	SuccessURL string         `json:"successUrl"`
	CancelURL  string         `json:"cancelUrl"`
}

// CreateCheckoutSession requests a hosted payment page from Stripe for
// the posted cart and returns its URL. Every call creates a fresh
// session; nothing is persisted here, the session metadata alone links
// the payment back to the catalog entries.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if c.Request.ContentLength > 64*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId), slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var req CheckoutRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	validate := validator.New()
	err = validate.Struct(req)
	if err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			vErr := vErrs[0]
			if vErr.Field() == "Items" {
				slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No items provided"})
				return
			}
			slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " is invalid"})
			return
		}
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	sKey := os.Getenv("STRIPE_SECRET_KEY")
	if sKey == "" {
		slog.Error("stripe secret key not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Stripe is not configured. Please set STRIPE_SECRET_KEY."})
		return
	}
	stripe.Key = sKey

	successURL, cancelURL, err := redirectURLs(req.SuccessURL, req.CancelURL, os.Getenv("SITE_URL"))
	if err != nil {
		slog.Error("redirect urls not resolvable", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Site URL is not configured. Please set SITE_URL."})
		return
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          buildLineItems(req.Items, defaultCurrency()),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
	}
	params.AddMetadata("product_ids", joinProductIDs(req.Items))

	sessionStripe, err := session.New(params)
	if err != nil {
		slog.Error("error creating stripe checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	slog.Info("checkout session created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.SessionID, sessionStripe.ID), slog.String("ProductIDs", joinProductIDs(req.Items)))

	c.JSON(http.StatusOK, gin.H{"url": sessionStripe.URL, "id": sessionStripe.ID})
}

// buildLineItems converts cart lines into Stripe line items: prices go
// from major units to minor units (round to the nearest cent), quantity
// defaults to 1 and the product id travels on the price metadata.
func buildLineItems(items []CheckoutItem, defaultCurrency string) []*stripe.CheckoutSessionLineItemParams {
	lineItems := []*stripe.CheckoutSessionLineItemParams{}
	for _, item := range items {
		currency := item.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}

		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
			Metadata: map[string]string{
				"product_id": item.ID,
			},
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(toMinorUnits(item.Price)),
			},
			Quantity: stripe.Int64(quantity),
		})
	}
	return lineItems
}

func toMinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

func joinProductIDs(items []CheckoutItem) string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return strings.Join(ids, ",")
}

// redirectURLs picks the caller-supplied URLs when present, otherwise
// derives them from the configured site URL. Stripe substitutes the
// session id placeholder in the success URL after payment.
func redirectURLs(successURL, cancelURL, siteURL string) (string, string, error) {
	if successURL != "" && cancelURL != "" {
		return successURL, cancelURL, nil
	}
	if siteURL == "" {
		return "", "", errors.New("SITE_URL is not set and request did not supply redirect urls")
	}
	siteURL = strings.TrimRight(siteURL, "/")
	if successURL == "" {
		successURL = siteURL + "/pages/success.html?session_id={CHECKOUT_SESSION_ID}"
	}
	if cancelURL == "" {
		cancelURL = siteURL + "/pages/cart.html"
	}
	return successURL, cancelURL, nil
}

func defaultCurrency() string {
	if currency := os.Getenv("STRIPE_CURRENCY"); currency != "" {
		return currency
	}
	return "eur"
}
