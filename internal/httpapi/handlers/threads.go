package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hilo-chat/hilo/internal/chat"
	"github.com/hilo-chat/hilo/internal/common"
)

func (h *Handler) ListThreads(c *gin.Context) {
	uid, err := h.resolveUser(c)
	if err != nil {
		log.Printf("[ListThreads] resolve user failed err=%v", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to resolve user")
		return
	}

	threads, err := h.ChatSvc.ListThreads(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[ListThreads] list failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list threads")
		return
	}

	common.Ok(c, gin.H{"threads": threads})
}

func (h *Handler) CreateThread(c *gin.Context) {
	uid, err := h.resolveUser(c)
	if err != nil {
		log.Printf("[CreateThread] resolve user failed err=%v", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to resolve user")
		return
	}

	thread, err := h.ChatSvc.CreateThread(c.Request.Context(), uid, "")
	if err != nil {
		log.Printf("[CreateThread] create failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to create thread")
		return
	}

	common.Ok(c, gin.H{
		"id":         thread.ID,
		"title":      thread.Title,
		"created_at": thread.CreatedAt,
		"updated_at": thread.UpdatedAt,
	})
}

func (h *Handler) ListThreadMessages(c *gin.Context) {
	threadID := c.Param("thread_id")

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		log.Printf("[ListThreadMessages] list failed thread=%s err=%v", threadID, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list messages")
		return
	}

	common.Ok(c, gin.H{"messages": msgs})
}

type renameThreadReq struct {
	Title string `json:"title"`
}

func (h *Handler) RenameThread(c *gin.Context) {
	threadID := c.Param("thread_id")

	var req renameThreadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	title, err := h.ChatSvc.RenameThread(c.Request.Context(), threadID, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyTitle) {
			common.Fail(c, http.StatusBadRequest, 10004, "title required")
			return
		}
		log.Printf("[RenameThread] rename failed thread=%s err=%v", threadID, err)
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to rename thread")
		return
	}

	common.Ok(c, gin.H{"success": true, "title": title})
}

func (h *Handler) DeleteThread(c *gin.Context) {
	threadID := c.Param("thread_id")

	if err := h.ChatSvc.DeleteThread(c.Request.Context(), threadID); err != nil {
		log.Printf("[DeleteThread] delete failed thread=%s err=%v", threadID, err)
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to delete thread")
		return
	}

	common.Ok(c, gin.H{"success": true})
}

type sendMessageReq struct {
	Message string `json:"message"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	threadID := c.Param("thread_id")

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	content, messageID, err := h.ChatSvc.SendMessage(c.Request.Context(), threadID, req.Message)
	if err != nil {
		var terminated *chat.RunTerminatedError
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 10002, "message required")
		case errors.Is(err, chat.ErrRunTimeout):
			common.Fail(c, http.StatusRequestTimeout, 40800, "timed out waiting for assistant reply")
		case errors.As(err, &terminated):
			log.Printf("[SendMessage] run terminated thread=%s status=%s detail=%q", threadID, terminated.Status, terminated.Detail)
			common.Fail(c, http.StatusInternalServerError, 50007, terminated.Error())
		case errors.Is(err, chat.ErrNoReply), errors.Is(err, chat.ErrUnsupportedContent):
			log.Printf("[SendMessage] unusable reply thread=%s err=%v", threadID, err)
			common.Fail(c, http.StatusInternalServerError, 50008, err.Error())
		default:
			log.Printf("[SendMessage] failed thread=%s err=%v", threadID, err)
			common.Fail(c, http.StatusInternalServerError, 50009, "failed to send message")
		}
		return
	}

	common.Ok(c, gin.H{
		"content":    content,
		"message_id": messageID,
	})
}
