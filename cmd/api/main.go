package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seyikole/chatlink/internal/auth"
	"github.com/seyikole/chatlink/internal/config"
	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/db"
	"github.com/seyikole/chatlink/internal/directory"
	"github.com/seyikole/chatlink/internal/media"
	"github.com/seyikole/chatlink/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoURI == "" {
		log.Fatal("CHATLINK_MONGODB_URI must be set")
	}
	if cfg.JWTSecret == "" && cfg.JWTKeys == "" {
		log.Fatal("either CHATLINK_JWT_SECRET or CHATLINK_JWT_KEYS must be set")
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection(), dbClient.MessagesCollection())
	groupsStore := data.NewGroupsStore(dbClient.GroupsCollection(), dbClient.GroupMessagesCollection())
	dir := directory.New(usersStore, chatsStore, groupsStore)
	signer := media.NewSigner(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)

	// Session tokens stay valid for 24 hours. A key set enables secret
	// rotation; a single secret is the simple path.
	var jwtMgr *auth.JWTManager
	if cfg.JWTKeys != "" {
		keys, err := auth.ParseKeySpec(cfg.JWTKeys)
		if err != nil {
			log.Fatalf("invalid CHATLINK_JWT_KEYS: %v", err)
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, 24*time.Hour)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	}

	// small burst so a client catching up after a reconnect isn't rejected
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	srv := newServer(cfg, usersStore, chatsStore, groupsStore, dir, signer, jwtMgr, limiterStore)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.setupRouter(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
