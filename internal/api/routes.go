package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docuport-backend-go/internal/middleware"
	"docuport-backend-go/internal/store"
)

// SetupRoutes wires the proxy wire contract onto the router. Global
// middleware (logging, recovery, CORS) is applied to router before this is
// called. authMW may be nil, in which case the store routes are open; that is
// only acceptable for local development against an embedded backend.
func SetupRoutes(router *gin.Engine, logger *zap.Logger, st store.Store, authMW *middleware.AuthMiddleware) {
	storeHandler := NewStoreHandler(st, logger)

	apiGroup := router.Group("/api")
	if authMW != nil {
		apiGroup.Use(authMW.VerifyToken())
	} else {
		logger.Warn("store routes are not protected: no auth middleware configured")
	}
	apiGroup.POST("/:backend/:operation", storeHandler.Dispatch)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "UP",
			"backend":    st.Kind(),
			"configured": st.IsConfigured(),
		})
	})

	logger.Info("API routes configured", zap.String("backend", st.Kind()))
}
