package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/seyikole/chatlink/internal/middleware"
)

func (s *Server) setupRouter() *gin.Engine {
	if os.Getenv("GIN_MODE") == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.defineRoutes(r)
	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(s.authRequired())

	// heartbeat and user search are polled by clients; both are bounded
	// per identity
	limited := middleware.RateLimit(s.limiter, identityKey)

	api.POST("/users/sync", s.handleSyncUser())
	api.GET("/users/me", s.handleMe())
	api.PATCH("/users/profile", s.handleUpdateProfile())
	api.PUT("/users/theme", s.handleUpdateTheme())
	api.GET("/users/search", limited, s.handleSearchUsers())
	api.POST("/presence/heartbeat", limited, s.handleHeartbeat())

	api.GET("/conversations", s.handleListConversations())
	api.GET("/media/sign", s.handleSignUpload())

	api.POST("/chats", s.handleGetOrCreateChat())
	api.GET("/chats/:id", s.handleGetChat())
	api.GET("/chats/:id/messages", s.handlePageChatMessages())
	api.POST("/chats/:id/messages", s.handleSendChatMessage())
	api.POST("/chats/:id/read", s.handleMarkChatRead())
	api.POST("/chats/:id/messages/read", s.handleMarkChatMessagesRead())
	api.GET("/chats/:id/messages/search", s.handleSearchChatMessages())
	api.POST("/messages/:id/reactions", s.handleReactToMessage())
	api.DELETE("/messages/:id", s.handleDeleteMessage())
	api.GET("/messages/:id/recipient-status", s.handleRecipientStatus())

	api.POST("/groups", s.handleCreateGroup())
	api.GET("/groups/:id", s.handleGetGroup())
	api.PATCH("/groups/:id", s.handleUpdateGroup())
	api.DELETE("/groups/:id", s.handleDeleteGroup())
	api.POST("/groups/:id/members", s.handleAddGroupMember())
	api.DELETE("/groups/:id/members/:memberId", s.handleRemoveGroupMember())
	api.POST("/groups/:id/leave", s.handleLeaveGroup())
	api.POST("/groups/:id/admins", s.handlePromoteGroupAdmin())
	api.GET("/groups/:id/messages", s.handlePageGroupMessages())
	api.POST("/groups/:id/messages", s.handleSendGroupMessage())
	api.POST("/groups/:id/read", s.handleMarkGroupRead())
	api.POST("/groups/:id/messages/read", s.handleMarkGroupMessagesRead())
	api.GET("/groups/:id/messages/search", s.handleSearchGroupMessages())
	api.POST("/group-messages/:id/reactions", s.handleReactToGroupMessage())
	api.DELETE("/group-messages/:id", s.handleDeleteGroupMessage())
}
