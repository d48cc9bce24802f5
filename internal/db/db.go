// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the service's collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Client. The connection is verified
// with a ping before the client is handed out.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("chatlink"),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ChatsCollection returns the direct-conversation collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// MessagesCollection returns the direct-message collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// GroupsCollection returns the group-conversation collection.
func (c *Client) GroupsCollection() *mongo.Collection {
	return c.db.Collection("groups")
}

// GroupMessagesCollection returns the group-message collection.
func (c *Client) GroupMessagesCollection() *mongo.Collection {
	return c.db.Collection("group_messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes every store relies on. Safe to call on
// every startup; index creation is idempotent.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// users: one document per external identity
	usersIndex := mongo.IndexModel{
		Keys:    map[string]int{"identity": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// chats: one document per participant pair (pair_key is the sorted,
	// joined pair), plus membership lookups for the directory listing
	chatsIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"pair_key": 1},
			Options: options.Index().SetUnique(true),
		},
		{Keys: map[string]int{"participant_ids": 1}},
	}
	if _, err := c.ChatsCollection().Indexes().CreateMany(ctx, chatsIndexes); err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}

	// groups: member lookups for the directory listing
	groupsIndex := mongo.IndexModel{
		Keys: map[string]int{"member_ids": 1},
	}
	if _, err := c.GroupsCollection().Indexes().CreateOne(ctx, groupsIndex); err != nil {
		return fmt.Errorf("failed to create groups index: %w", err)
	}

	// message logs: newest-first paging within one conversation. The
	// compound key must be ordered, so bson.D rather than a map.
	logIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: map[string]int{"sent_at": -1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, logIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	if _, err := c.GroupMessagesCollection().Indexes().CreateMany(ctx, logIndexes); err != nil {
		return fmt.Errorf("failed to create group message indexes: %w", err)
	}

	return nil
}
