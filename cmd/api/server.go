package main

import (
	"github.com/seyikole/chatlink/internal/auth"
	"github.com/seyikole/chatlink/internal/config"
	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/directory"
	"github.com/seyikole/chatlink/internal/media"
	"github.com/seyikole/chatlink/internal/middleware"
)

// Server holds the stores and services the handlers reach for.
type Server struct {
	cfg     *config.Config
	users   *data.UsersStore
	chats   *data.ChatsStore
	groups  *data.GroupsStore
	dir     *directory.Directory
	signer  *media.Signer
	auth    *auth.JWTManager
	limiter *middleware.LimiterStore
}

// newServer returns a ready-to-use Server wired with stores and services.
func newServer(cfg *config.Config, users *data.UsersStore, chats *data.ChatsStore,
	groups *data.GroupsStore, dir *directory.Directory, signer *media.Signer,
	authMgr *auth.JWTManager, limiter *middleware.LimiterStore) *Server {
	return &Server{
		cfg:     cfg,
		users:   users,
		chats:   chats,
		groups:  groups,
		dir:     dir,
		signer:  signer,
		auth:    authMgr,
		limiter: limiter,
	}
}
