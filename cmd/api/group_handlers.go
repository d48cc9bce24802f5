package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/media"
)

type createGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatarUrl"`
	MemberIDs   []string `json:"memberIds"`
}

func (s *Server) handleCreateGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		// every initial member must already exist in the directory
		missing, err := s.users.Missing(c.Request.Context(), req.MemberIDs)
		if err != nil {
			storeError(c, err)
			return
		}
		if len(missing) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unknown members: %s", strings.Join(missing, ", ")),
			})
			return
		}

		group, err := s.groups.Create(c.Request.Context(), data.CreateGroupParams{
			Name:        req.Name,
			Description: req.Description,
			AvatarURL:   req.AvatarURL,
			Creator:     identityFrom(c),
			MemberIDs:   req.MemberIDs,
		})
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, group)
	}
}

func (s *Server) handleGetGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		group, err := s.groups.Get(ctx, c.Param("id"))
		if err != nil {
			storeError(c, err)
			return
		}

		profiles, err := s.users.GetManyByIdentity(ctx, group.MemberIDs)
		if err != nil {
			storeError(c, err)
			return
		}
		members := make([]*data.User, 0, len(group.MemberIDs))
		for _, id := range group.MemberIDs {
			if u, ok := profiles[id]; ok {
				members = append(members, u)
			}
		}

		c.JSON(http.StatusOK, gin.H{"group": group, "members": members})
	}
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatarUrl"`
}

func (s *Server) handleUpdateGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		id := c.Param("id")
		err := s.groups.Update(c.Request.Context(), id, identityFrom(c), data.GroupUpdate{
			Name:        req.Name,
			Description: req.Description,
			AvatarURL:   req.AvatarURL,
		})
		if err != nil {
			storeError(c, err)
			return
		}

		group, err := s.groups.Get(c.Request.Context(), id)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func (s *Server) handleDeleteGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.groups.Delete(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type memberRequest struct {
	Identity string `json:"identity" binding:"required"`
}

func (s *Server) handleAddGroupMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req memberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if _, err := s.users.GetByIdentity(c.Request.Context(), req.Identity); err != nil {
			storeError(c, err)
			return
		}
		err := s.groups.AddMember(c.Request.Context(), c.Param("id"), identityFrom(c), req.Identity)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleRemoveGroupMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.groups.RemoveMember(c.Request.Context(), c.Param("id"), identityFrom(c), c.Param("memberId"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleLeaveGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.groups.Leave(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handlePromoteGroupAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req memberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		err := s.groups.Promote(c.Request.Context(), c.Param("id"), identityFrom(c), req.Identity)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handlePageGroupMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, cursor := pageParams(c)
		msgs, next, err := s.groups.Page(c.Request.Context(), c.Param("id"), limit, cursor)
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

func (s *Server) handleSendGroupMessage() gin.HandlerFunc {
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

		// the sender profile is snapshotted onto the message
		sender, err := s.users.GetByIdentity(c.Request.Context(), identityFrom(c))
		if err != nil {
			storeError(c, err)
			return
		}

		kind := ""
		if req.MediaURL != "" {
			kind = media.Kind(req.MediaKind, req.MediaURL)
		}

		msg, err := s.groups.Send(c.Request.Context(), c.Param("id"), sender,
			req.Content, req.MediaURL, kind)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, viewMessage(msg))
	}
}

func (s *Server) handleMarkGroupRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.groups.MarkRead(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleMarkGroupMessagesRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markMessagesReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		err := s.groups.MarkMessagesRead(c.Request.Context(), c.Param("id"), identityFrom(c), req.MessageIDs)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleSearchGroupMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := s.groups.Search(c.Request.Context(), c.Param("id"), c.Query("q"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": viewMessages(msgs)})
	}
}

func (s *Server) handleReactToGroupMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := s.groups.React(c.Request.Context(), c.Param("id"), identityFrom(c), req.Symbol); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleDeleteGroupMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.groups.SoftDelete(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
