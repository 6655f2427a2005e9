// Package restapi exposes the wallet session, token discovery feed,
// chat and demo trading over HTTP.
package restapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"trenches-buddy/internal/observability"
)

// NewRouter builds the gin engine with CORS and all API routes.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(corsOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = corsOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.getHealth)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/wallet", h.getWalletStatus)
		v1.POST("/wallet/connect", h.connectWallet)
		v1.POST("/wallet/disconnect", h.disconnectWallet)

		v1.GET("/deployments", h.listDeployments)
		v1.POST("/deployments", h.deployBuddy)
		v1.GET("/deployments/active", h.getActiveDeployment)
		v1.PUT("/deployments/active", h.updateActiveDeployment)

		v1.GET("/prices", h.listPrices)

		v1.GET("/tokens", h.listTokens)
		v1.GET("/tokens/trending", h.listTrending)
		v1.GET("/tokens/:mint/metrics", h.getTokenMetrics)

		v1.POST("/chat", h.postChat)
		v1.POST("/trades", h.postTrade)
	}

	return router
}
