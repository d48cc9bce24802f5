package data

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore manages direct conversations and their message log.
type ChatsStore struct {
	coll *mongo.Collection
	log  messageLog
}

// NewChatsStore returns a ChatsStore over the chats and messages
// collections.
func NewChatsStore(chats, messages *mongo.Collection) *ChatsStore {
	return &ChatsStore{
		coll: chats,
		log:  messageLog{coll: messages, kind: KindDirect},
	}
}

// pairKey is the canonical identifier of a participant pair: both
// identities sorted and joined. The unique index on it is what makes
// first-contact creation race-free.
func pairKey(a, b string) (string, []string) {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b, []string{a, b}
}

// GetOrCreate finds the direct chat between two identities, creating it
// lazily on first contact. Chats are deduplicated per participant pair;
// when two first-contact calls race, the loser of the insert re-reads the
// winner's chat. The boolean reports whether a new chat was created.
func (s *ChatsStore) GetOrCreate(ctx context.Context, a, b string) (*Chat, bool, error) {
	if a == b {
		return nil, false, fmt.Errorf("chat with self: %w", ErrInvalidState)
	}
	key, pair := pairKey(a, b)

	var chat Chat
	err := s.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&chat)
	if err == nil {
		return &chat, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	chat = Chat{
		PairKey:        key,
		ParticipantIDs: pair,
		CreatedAt:      time.Now(),
		LastMessageAt:  time.Now(),
		UnreadBy:       []string{},
	}
	result, err := s.coll.InsertOne(ctx, &chat)
	if mongo.IsDuplicateKeyError(err) {
		var existing Chat
		if err := s.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&existing); err != nil {
			return nil, false, fmt.Errorf("find chat after duplicate insert: %w", err)
		}
		return &existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert chat: %w", err)
	}
	chat.ID = result.InsertedID.(bson.ObjectID)
	return &chat, true, nil
}

// Get returns one chat by hex id. Malformed or unknown ids are
// ErrNotFound.
func (s *ChatsStore) Get(ctx context.Context, id string) (*Chat, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}

	var chat Chat
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&chat); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &chat, nil
}

// ListForUser returns every chat the identity participates in. An unknown
// identity simply has no chats; listing never fails for absent data.
func (s *ChatsStore) ListForUser(ctx context.Context, user string) ([]*Chat, error) {
	cur, err := s.coll.Find(ctx, bson.M{"participant_ids": user},
		options.Find().SetSort(bson.M{"last_message_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer cur.Close(ctx)

	var chats []*Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	return chats, nil
}

// Send appends a message to the chat. The sender must be a participant.
// The message is inserted with read_by = {sender}; a second, best-effort
// step patches the chat's recency, preview and unread set. If that patch
// fails the message still exists; the stale preview self-heals on the
// next send.
func (s *ChatsStore) Send(ctx context.Context, chatID, sender, content, mediaURL, mediaKind string) (*Message, error) {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !contains(chat.ParticipantIDs, sender) {
		return nil, fmt.Errorf("sender %s in chat %s: %w", sender, chatID, ErrNotAMember)
	}

	msg := &Message{
		ConversationID: chat.ID.Hex(),
		SenderID:       sender,
		Content:        content,
		MediaURL:       mediaURL,
		MediaKind:      mediaKind,
		ReadBy:         []string{sender},
	}
	if err := s.log.insert(ctx, msg); err != nil {
		return nil, err
	}

	// unread_by is replaced with exactly the other participant: it means
	// "has unread activity since last open", not a per-message count
	unread := without(chat.ParticipantIDs, sender)

	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": chat.ID}, bson.M{"$set": bson.M{
		"last_message_at":      msg.SentAt,
		"last_message_preview": preview(content),
		"unread_by":            unread,
	}})
	if err != nil {
		log.Printf("chat %s: preview patch failed after send: %v", chatID, err)
	}
	return msg, nil
}

// Page returns one page of the chat's log, oldest-first for display.
func (s *ChatsStore) Page(ctx context.Context, chatID string, limit int64, cursor Cursor) ([]*Message, Cursor, error) {
	return s.log.page(ctx, chatID, limit, cursor)
}

// MarkRead clears the caller's unread flag on the chat and, as a bulk
// side effect, unions the caller into read_by of every message they did
// not send. Idempotent: repeated calls leave identical state.
func (s *ChatsStore) MarkRead(ctx context.Context, chatID, user string) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !contains(chat.ParticipantIDs, user) {
		return fmt.Errorf("user %s in chat %s: %w", user, chatID, ErrNotAMember)
	}

	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": chat.ID},
		bson.M{"$pull": bson.M{"unread_by": user}}); err != nil {
		return fmt.Errorf("clear unread flag: %w", err)
	}
	return s.log.markAllRead(ctx, chat.ID.Hex(), user)
}

// MarkMessagesRead unions the caller into read_by of the listed messages.
// Unknown ids are skipped silently. The chat-level unread flag is NOT
// touched; only MarkRead clears it.
func (s *ChatsStore) MarkMessagesRead(ctx context.Context, chatID, user string, messageIDs []string) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !contains(chat.ParticipantIDs, user) {
		return fmt.Errorf("user %s in chat %s: %w", user, chatID, ErrNotAMember)
	}
	return s.log.markRead(ctx, chat.ID.Hex(), user, messageIDs)
}

// React records the user's reaction on a message, replacing any prior
// reaction from the same user.
func (s *ChatsStore) React(ctx context.Context, messageID, user, symbol string) error {
	return s.log.react(ctx, messageID, user, symbol)
}

// SoftDelete tombstones a message. Direct messages can only be deleted by
// their sender.
func (s *ChatsStore) SoftDelete(ctx context.Context, messageID, requester string) error {
	msg, err := s.log.get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requester {
		return fmt.Errorf("delete message %s: %w", messageID, ErrForbidden)
	}
	return s.log.tombstone(ctx, msg.ID)
}

// GetMessage returns one direct message by id.
func (s *ChatsStore) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	return s.log.get(ctx, messageID)
}

// Search returns the chat's messages containing the term.
func (s *ChatsStore) Search(ctx context.Context, chatID, term string) ([]*Message, error) {
	return s.log.search(ctx, chatID, term)
}
