package data

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/seyikole/chatlink/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Cursor is an opaque paging token. The empty cursor means the first page.
// A cursor that fails to parse also means the first page; paging never
// errors on a bad token.
type Cursor string

// offset decodes the cursor. The current encoding is a numeric offset from
// the newest message; anything unparsable or negative resets to zero.
func (c Cursor) offset() int64 {
	n, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cursorAt(offset int64) Cursor {
	return Cursor(strconv.FormatInt(offset, 10))
}

// preview returns the conversation preview for a message body: the first 50
// characters with an ellipsis marker when truncated. Counted in runes so
// multi-byte content is never split mid-character.
func preview(content string) string {
	const max = 50
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}

// messageLog is the append-only message store shared by the two
// conversation kinds. Direct and group messages live in separate
// collections with identical behavior; each owning store embeds a log
// bound to its collection and kind tag.
type messageLog struct {
	coll *mongo.Collection
	kind ConversationKind
}

// insert appends a message. ReadBy must already contain the sender; the
// log stamps timestamps and the generated id.
func (l *messageLog) insert(ctx context.Context, msg *Message) error {
	now := time.Now()
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	msg.CreatedAt = now

	result, err := l.coll.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	msg.Kind = l.kind
	return nil
}

// get returns one message by hex id. A malformed or unknown id is
// ErrNotFound.
func (l *messageLog) get(ctx context.Context, id string) (*Message, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	var msg Message
	if err := l.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	msg.Kind = l.kind
	return &msg, nil
}

// page returns one page of a conversation's log, ascending by send time
// for display. Retrieval is newest-first with an offset cursor; the slice
// is reversed before returning. The second return value is the cursor for
// the next (older) page, empty when the log is exhausted.
func (l *messageLog) page(ctx context.Context, convID string, limit int64, cursor Cursor) ([]*Message, Cursor, error) {
	if limit <= 0 {
		limit = 50
	}
	offset := cursor.offset()

	// fetch one extra row to learn whether an older page exists
	opts := options.Find().
		SetSort(bson.M{"sent_at": -1}).
		SetSkip(offset).
		SetLimit(limit + 1)

	cur, err := l.coll.Find(ctx, bson.M{"conversation_id": convID}, opts)
	if err != nil {
		return nil, "", fmt.Errorf("page messages: %w", err)
	}
	defer cur.Close(ctx)

	var messages []*Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, "", fmt.Errorf("decode messages: %w", err)
	}

	var next Cursor
	if int64(len(messages)) > limit {
		messages = messages[:limit]
		next = cursorAt(offset + limit)
	}

	// store order is newest-first; display order is oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for _, m := range messages {
		m.Kind = l.kind
	}
	return messages, next, nil
}

// markRead unions user into the read_by set of each listed message.
// Unknown or malformed ids are skipped silently; read_by never shrinks.
func (l *messageLog) markRead(ctx context.Context, convID, user string, messageIDs []string) error {
	for _, id := range messageIDs {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		_, err = l.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "conversation_id": convID},
			bson.M{"$addToSet": bson.M{"read_by": user}},
		)
		if err != nil {
			return fmt.Errorf("mark message %s read: %w", id, err)
		}
	}
	return nil
}

// markAllRead unions user into read_by on every message in the
// conversation not authored by user. This is the O(message-count) fan-out
// behind opening a conversation; $addToSet keeps it idempotent.
func (l *messageLog) markAllRead(ctx context.Context, convID, user string) error {
	_, err := l.coll.UpdateMany(ctx,
		bson.M{"conversation_id": convID, "sender_id": bson.M{"$ne": user}},
		bson.M{"$addToSet": bson.M{"read_by": user}},
	)
	if err != nil {
		return fmt.Errorf("mark conversation %s read: %w", convID, err)
	}
	return nil
}

// react records user's reaction, overwriting an existing entry in place so
// a message never carries two reactions from one identity. Entry order is
// preserved. Both steps are single-document atomic updates, so reactions
// from different users commute; racing reactions from the same user
// resolve last-write-wins.
func (l *messageLog) react(ctx context.Context, messageID, user, symbol string) error {
	oid, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	// overwrite the user's existing entry in place
	result, err := l.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "reactions.user_id": user},
		bson.M{"$set": bson.M{"reactions.$.symbol": symbol}},
	)
	if err != nil {
		return fmt.Errorf("update reaction: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// first reaction from this user. The $ne guard makes the append a
	// no-op when a concurrent call from the same user got there first.
	result, err = l.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "reactions.user_id": bson.M{"$ne": user}},
		bson.M{"$push": bson.M{"reactions": Reaction{UserID: user, Symbol: symbol}}},
	)
	if err != nil {
		return fmt.Errorf("append reaction: %w", err)
	}
	if result.MatchedCount == 0 {
		// lost a same-user race to the append, or the message is gone
		result, err = l.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.user_id": user},
			bson.M{"$set": bson.M{"reactions.$.symbol": symbol}},
		)
		if err != nil {
			return fmt.Errorf("update reaction: %w", err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
	}
	return nil
}

// tombstone soft-deletes a message: content is replaced with the
// tombstone marker and media references are cleared. The id, read_by and
// reactions survive. Permission checks belong to the owning store.
func (l *messageLog) tombstone(ctx context.Context, id bson.ObjectID) error {
	_, err := l.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"is_deleted": true, "content": Tombstone},
			"$unset": bson.M{"media_url": "", "media_kind": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("tombstone message: %w", err)
	}
	return nil
}

// search returns the conversation's messages whose content contains the
// term, case-insensitively. An empty or whitespace-only term matches
// nothing.
func (l *messageLog) search(ctx context.Context, convID, term string) ([]*Message, error) {
	term = normalize.Term(term)
	if term == "" {
		return nil, nil
	}

	filter := bson.M{
		"conversation_id": convID,
		"content":         bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"},
	}
	cur, err := l.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"sent_at": 1}))
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer cur.Close(ctx)

	var messages []*Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	for _, m := range messages {
		m.Kind = l.kind
	}
	return messages, nil
}

// purge hard-deletes every message in the conversation. Only the
// group-delete cascade uses this; user-facing deletion is always the
// tombstone.
func (l *messageLog) purge(ctx context.Context, convID string) error {
	_, err := l.coll.DeleteMany(ctx, bson.M{"conversation_id": convID})
	if err != nil {
		return fmt.Errorf("purge conversation %s: %w", convID, err)
	}
	return nil
}
