package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/hilo-chat/hilo/internal/chat"
	"github.com/hilo-chat/hilo/internal/common"
	"github.com/hilo-chat/hilo/internal/identity"
)

// SessionCookie carries the anonymous session token.
const SessionCookie = "session_id"

const sessionCookieMaxAge = 60 * 60 * 24 * 365 // 1 year

type Handler struct {
	ChatSvc  *chat.Service
	Resolver *identity.Resolver
}

func NewHandler(svc *chat.Service, resolver *identity.Resolver) *Handler {
	return &Handler{ChatSvc: svc, Resolver: resolver}
}

func (h *Handler) Ping(c *gin.Context) {
	common.Ok(c, gin.H{"pong": true})
}

// resolveUser maps the session cookie to a user id, creating the identity
// when needed. When a fresh token is minted it is set as the session cookie
// so the next request resolves to the same identity.
func (h *Handler) resolveUser(c *gin.Context) (uint64, error) {
	token, _ := c.Cookie(SessionCookie)
	userID, minted, err := h.Resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		return 0, err
	}
	if minted != "" {
		c.SetCookie(SessionCookie, minted, sessionCookieMaxAge, "/", "", false, true)
	}
	return userID, nil
}
