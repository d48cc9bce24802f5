// Package data provides DB models and stores.
package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ConversationKind discriminates the two conversation variants. Direct and
// group messages share one record shape; the kind tag tells renderers (and
// the directory) which rules apply.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Tombstone is the placeholder content a soft-deleted message keeps.
const Tombstone = "This message was deleted"

// User maps to the users collection. Identity is the external auth
// provider's stable id; profile fields are display-only. LastSeen drives
// presence inference and is refreshed by the heartbeat endpoint.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Identity  string        `bson:"identity" json:"identity"`
	Email     string        `bson:"email" json:"email"`
	Name      string        `bson:"name" json:"name"`
	AvatarURL string        `bson:"avatar_url" json:"avatarUrl"`
	Username  string        `bson:"username,omitempty" json:"username,omitempty"`
	Bio       string        `bson:"bio,omitempty" json:"bio,omitempty"`
	LastSeen  time.Time     `bson:"last_seen,omitempty" json:"lastSeen"`
	Theme     string        `bson:"theme,omitempty" json:"theme,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"-"`
	UpdatedAt time.Time     `bson:"updated_at" json:"-"`
}

// Chat maps to the chats collection: a direct conversation between exactly
// two participants. ParticipantIDs is stored in canonical sorted order and
// PairKey is its joined form, unique-indexed so concurrent first-contact
// calls cannot create the pair twice. UnreadBy holds the participants who
// have not opened the conversation since its latest message; it is
// replaced wholesale on every send, not accumulated.
type Chat struct {
	ID                 bson.ObjectID `bson:"_id,omitempty" json:"id"`
	PairKey            string        `bson:"pair_key" json:"-"`
	ParticipantIDs     []string      `bson:"participant_ids" json:"participantIds"`
	CreatedAt          time.Time     `bson:"created_at" json:"createdAt"`
	LastMessageAt      time.Time     `bson:"last_message_at,omitempty" json:"lastMessageAt"`
	LastMessagePreview string        `bson:"last_message_preview,omitempty" json:"lastMessagePreview"`
	UnreadBy           []string      `bson:"unread_by" json:"unreadBy"`
}

// Group maps to the groups collection. AdminIDs is always a non-empty
// subset of MemberIDs; CreatedBy is the permanent owner and the only
// identity allowed to delete the group.
type Group struct {
	ID                 bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string        `bson:"name" json:"name"`
	Description        string        `bson:"description,omitempty" json:"description,omitempty"`
	AvatarURL          string        `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	CreatedBy          string        `bson:"created_by" json:"createdBy"`
	CreatedAt          time.Time     `bson:"created_at" json:"createdAt"`
	MemberIDs          []string      `bson:"member_ids" json:"memberIds"`
	AdminIDs           []string      `bson:"admin_ids" json:"adminIds"`
	LastMessageAt      time.Time     `bson:"last_message_at,omitempty" json:"lastMessageAt"`
	LastMessagePreview string        `bson:"last_message_preview,omitempty" json:"lastMessagePreview"`
	UnreadBy           []string      `bson:"unread_by" json:"unreadBy"`
}

// Reaction is one user's reaction to a message. A message holds at most one
// entry per identity; a repeat reaction overwrites the symbol in place.
type Reaction struct {
	UserID string `bson:"user_id" json:"userId"`
	Symbol string `bson:"symbol" json:"symbol"`
}

// SenderSnapshot is the denormalized sender profile stored on group
// messages at send time, so rendering a page needs no user join.
type SenderSnapshot struct {
	Name      string `bson:"name" json:"name"`
	AvatarURL string `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
}

// Message maps to the messages and group_messages collections. Kind is not
// persisted; the owning store stamps it on the way out. ReadBy contains the
// sender from creation and only ever grows. A soft-deleted message keeps
// its id, ReadBy and Reactions but loses content and media.
type Message struct {
	ID             bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	Kind           ConversationKind `bson:"-" json:"kind"`
	ConversationID string           `bson:"conversation_id" json:"conversationId"`
	SenderID       string           `bson:"sender_id" json:"senderId"`
	Content        string           `bson:"content" json:"content"`
	MediaURL       string           `bson:"media_url,omitempty" json:"mediaUrl,omitempty"`
	MediaKind      string           `bson:"media_kind,omitempty" json:"mediaKind,omitempty"`
	SentAt         time.Time        `bson:"sent_at" json:"sentAt"`
	CreatedAt      time.Time        `bson:"created_at" json:"-"`
	IsDeleted      bool             `bson:"is_deleted" json:"isDeleted"`
	ReadBy         []string         `bson:"read_by" json:"readBy"`
	Reactions      []Reaction       `bson:"reactions,omitempty" json:"reactions,omitempty"`
	Sender         *SenderSnapshot  `bson:"sender,omitempty" json:"sender,omitempty"`
}

// ReactionGroup is one aggregated row for display: a symbol and how many
// users picked it.
type ReactionGroup struct {
	Symbol string   `json:"symbol"`
	Count  int      `json:"count"`
	Users  []string `json:"users"`
}

// GroupReactions aggregates a message's reactions by symbol. Groups appear
// in order of each symbol's first occurrence, not by frequency.
func GroupReactions(reactions []Reaction) []ReactionGroup {
	var groups []ReactionGroup
	index := map[string]int{}
	for _, r := range reactions {
		if i, ok := index[r.Symbol]; ok {
			groups[i].Count++
			groups[i].Users = append(groups[i].Users, r.UserID)
			continue
		}
		index[r.Symbol] = len(groups)
		groups = append(groups, ReactionGroup{Symbol: r.Symbol, Count: 1, Users: []string{r.UserID}})
	}
	return groups
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
