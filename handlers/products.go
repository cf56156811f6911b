package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"storefront-service/internal/catalog"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// ListProducts returns available products, optionally narrowed by the
// period or style query parameters.
func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var products []catalog.Product
	var err error

	switch {
	case c.Query("period") != "":
		products, err = h.c.FilterByPeriod(c.Request.Context(), c.Query("period"))
	case c.Query("style") != "":
		products, err = h.c.FilterByStyle(c.Request.Context(), c.Query("style"))
	default:
		products, err = h.c.AvailableProducts(c.Request.Context())
	}
	if err != nil {
		slog.Error("error fetching products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) FeaturedProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	products, err := h.c.FeaturedProducts(c.Request.Context())
	if err != nil {
		slog.Error("error fetching featured products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("id")
	product, err := h.c.ProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String(logkey.ProductID, productID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			slog.Error("error fetching product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		}
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) ListPeriods(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	periods, err := h.c.UniquePeriods(c.Request.Context())
	if err != nil {
		slog.Error("error fetching periods", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch periods"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (h *Handler) ListStyles(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	styles, err := h.c.UniqueStyles(c.Request.Context())
	if err != nil {
		slog.Error("error fetching styles", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch styles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"styles": styles})
}

// RefreshCatalog drops the cached catalog so the next read picks up
// out-of-band edits immediately instead of waiting out the TTL.
func (h *Handler) RefreshCatalog(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	h.c.Refresh(c.Request.Context())
	slog.Info("catalog cache invalidated", slog.String(logkey.TraceID, traceId))

	c.JSON(http.StatusOK, gin.H{"message": "Catalog cache invalidated"})
}
