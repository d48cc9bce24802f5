package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/media"
)

// storeError translates a store failure into its HTTP status. Anything
// outside the sentinel taxonomy is a 500.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, data.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, data.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, data.ErrNotAMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
	case errors.Is(err, data.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// messageView decorates a message with its aggregated reactions and a
// resolved media kind, covering records stored before kinds were
// recorded.
type messageView struct {
	*data.Message
	ReactionGroups []data.ReactionGroup `json:"reactionGroups,omitempty"`
}

func viewMessage(m *data.Message) messageView {
	if m.MediaURL != "" {
		m.MediaKind = media.Kind(m.MediaKind, m.MediaURL)
	}
	return messageView{Message: m, ReactionGroups: data.GroupReactions(m.Reactions)}
}

func viewMessages(msgs []*data.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, viewMessage(m))
	}
	return views
}

type syncUserRequest struct {
	Email          string `json:"email" binding:"required"`
	Name           string `json:"name" binding:"required"`
	AvatarURL      string `json:"avatarUrl"`
	Username       string `json:"username"`
	Bio            string `json:"bio"`
	Theme          string `json:"theme"`
	PreserveAvatar bool   `json:"preserveAvatar"`
}

func (s *Server) handleSyncUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		user, err := s.users.Upsert(c.Request.Context(), data.UpsertParams{
			Identity:       identityFrom(c),
			Email:          req.Email,
			Name:           req.Name,
			AvatarURL:      req.AvatarURL,
			Username:       req.Username,
			Bio:            req.Bio,
			Theme:          req.Theme,
			PreserveAvatar: req.PreserveAvatar,
		})
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.GetByIdentity(c.Request.Context(), identityFrom(c))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type updateProfileRequest struct {
	Name      *string `json:"name"`
	Username  *string `json:"username"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		identity := identityFrom(c)
		err := s.users.UpdateProfile(c.Request.Context(), identity, data.ProfileUpdate{
			Name:      req.Name,
			Username:  req.Username,
			Bio:       req.Bio,
			AvatarURL: req.AvatarURL,
		})
		if err != nil {
			storeError(c, err)
			return
		}

		user, err := s.users.GetByIdentity(c.Request.Context(), identity)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type updateThemeRequest struct {
	Theme string `json:"theme" binding:"required,oneof=light dark system"`
}

func (s *Server) handleUpdateTheme() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateThemeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := s.users.UpdateTheme(c.Request.Context(), identityFrom(c), req.Theme); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
	}
}

func (s *Server) handleSearchUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.dir.SearchUsers(c.Request.Context(), identityFrom(c), c.Query("q"))
		if err != nil {
			storeError(c, err)
			return
		}
		if users == nil {
			users = []*data.User{}
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

func (s *Server) handleHeartbeat() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.users.UpdateLastSeen(c.Request.Context(), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := s.dir.ListForUser(c.Request.Context(), identityFrom(c))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": summaries})
	}
}

func (s *Server) handleSignUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.signer.Sign(c.Query("endpoint")))
	}
}
