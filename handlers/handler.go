package handlers

import (
	"fmt"
	"net/http"
	"os"
	"storefront-service/internal/auth"
	"storefront-service/internal/catalog"
	"storefront-service/internal/stores/kafka"
	"storefront-service/middleware"
	"storefront-service/pkg/ctxmanage"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	c *catalog.Conf
	k *kafka.Conf // nil when no brokers are configured
}

func NewHandler(c *catalog.Conf, k *kafka.Conf) *Handler {
	return &Handler{
		c: c,
		k: k,
	}
}

// API wires the router. keys may be nil, in which case the admin refresh
// endpoint is not registered.
func API(endpointPrefix string, keys *auth.Keys, c *catalog.Conf, k *kafka.Conf) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	h := NewHandler(c, k)
	r.Use(middleware.Logger(), gin.Recovery())

	// The payment provider retries on anything but a clean response, so
	// a wrong verb must be an explicit 405, not a 404.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	r.GET("/ping", healthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/create-checkout-session", h.CreateCheckoutSession)
		v1.POST("/webhook", h.Webhook)

		v1.GET("/products/list", h.ListProducts)
		v1.GET("/products/featured", h.FeaturedProducts)
		v1.GET("/products/view/:id", h.GetProduct)
		v1.GET("/products/periods", h.ListPeriods)
		v1.GET("/products/styles", h.ListStyles)
	}

	if keys != nil {
		m, err := middleware.NewMid(keys)
		if err != nil {
			panic(err)
		}
		admin := r.Group(endpointPrefix)
		{
			admin.Use(m.Authentication())
			admin.POST("/products/refresh", m.Authorize(h.RefreshCatalog, auth.RoleAdmin))
		}
	}

	return r
}

func healthCheck(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	fmt.Println("healthCheck handler ", traceId)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
