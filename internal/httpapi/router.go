package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hilo-chat/hilo/internal/common"
	"github.com/hilo-chat/hilo/internal/httpapi/handlers"
	"github.com/hilo-chat/hilo/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.GET("/threads", h.ListThreads)
	api.POST("/threads", h.CreateThread)
	api.GET("/threads/:thread_id/messages", h.ListThreadMessages)
	api.POST("/threads/:thread_id/messages", h.SendMessage)
	api.PATCH("/threads/:thread_id", h.RenameThread)
	api.DELETE("/threads/:thread_id", h.DeleteThread)

	return r
}
