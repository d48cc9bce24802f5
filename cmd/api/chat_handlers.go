package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/media"
	"github.com/seyikole/chatlink/internal/presence"
)

type createChatRequest struct {
	Identity string `json:"identity" binding:"required"`
}

func (s *Server) handleGetOrCreateChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		// the other participant must exist in the directory before a chat
		// can point at them
		if _, err := s.users.GetByIdentity(c.Request.Context(), req.Identity); err != nil {
			storeError(c, err)
			return
		}

		chat, created, err := s.chats.GetOrCreate(c.Request.Context(), identityFrom(c), req.Identity)
		if err != nil {
			storeError(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, chat)
	}
}

func (s *Server) handleGetChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		chat, err := s.chats.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, chat)
	}
}

func pageParams(c *gin.Context) (int64, data.Cursor) {
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	return limit, data.Cursor(c.Query("cursor"))
}

func (s *Server) handlePageChatMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, cursor := pageParams(c)
		msgs, next, err := s.chats.Page(c.Request.Context(), c.Param("id"), limit, cursor)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"messages":   viewMessages(msgs),
			"nextCursor": next,
		})
	}
}

type sendMessageRequest struct {
	Content   string `json:"content"`
	MediaURL  string `json:"mediaUrl"`
	MediaKind string `json:"mediaKind"`
}

func (r *sendMessageRequest) validate() bool {
	return r.Content != "" || r.MediaURL != ""
}

func (s *Server) handleSendChatMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if !req.validate() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content or mediaUrl required"})
			return
		}

		kind := ""
		if req.MediaURL != "" {
			kind = media.Kind(req.MediaKind, req.MediaURL)
		}

		msg, err := s.chats.Send(c.Request.Context(), c.Param("id"), identityFrom(c),
			req.Content, req.MediaURL, kind)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, viewMessage(msg))
	}
}

func (s *Server) handleMarkChatRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.chats.MarkRead(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type markMessagesReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
}

func (s *Server) handleMarkChatMessagesRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markMessagesReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		err := s.chats.MarkMessagesRead(c.Request.Context(), c.Param("id"), identityFrom(c), req.MessageIDs)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleSearchChatMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := s.chats.Search(c.Request.Context(), c.Param("id"), c.Query("q"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": viewMessages(msgs)})
	}
}

type reactRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (s *Server) handleReactToMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := s.chats.React(c.Request.Context(), c.Param("id"), identityFrom(c), req.Symbol); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.chats.SoftDelete(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleRecipientStatus reports whether the other participant of a direct
// message is currently online.
func (s *Server) handleRecipientStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		msg, err := s.chats.GetMessage(ctx, c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}
		chat, err := s.chats.Get(ctx, msg.ConversationID)
		if err != nil {
			storeError(c, err)
			return
		}

		recipient := ""
		for _, p := range chat.ParticipantIDs {
			if p != msg.SenderID {
				recipient = p
				break
			}
		}
		if recipient == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		user, err := s.users.GetByIdentity(ctx, recipient)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"identity": recipient,
			"online":   presence.IsOnline(user.LastSeen),
			"lastSeen": user.LastSeen,
		})
	}
}
