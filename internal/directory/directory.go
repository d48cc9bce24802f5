// Package directory builds the per-user conversation list: direct chats
// and groups merged into one feed, annotated with presence and unread
// state and ordered by recency.
package directory

import (
	"context"
	"sort"
	"time"

	"github.com/seyikole/chatlink/internal/data"
	"github.com/seyikole/chatlink/internal/presence"
)

// Summary is one row of the conversation list. Exactly one of the
// direct-only or group-only field sets is populated, per Kind.
type Summary struct {
	Kind          data.ConversationKind `json:"kind"`
	ID            string                `json:"id"`
	LastMessageAt time.Time             `json:"lastMessageAt"`
	Preview       string                `json:"preview"`
	Unread        bool                  `json:"unread"`

	// direct chats only
	OtherUser   *data.User `json:"otherUser,omitempty"`
	OtherOnline bool       `json:"otherOnline,omitempty"`

	// groups only
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	MemberCount int    `json:"memberCount,omitempty"`
}

// Directory composes the stores into listing and search capabilities. The
// search implementation is index-backed today; any replacement must keep
// the case-insensitive substring contract.
type Directory struct {
	users  *data.UsersStore
	chats  *data.ChatsStore
	groups *data.GroupsStore
}

// New returns a Directory over the given stores.
func New(users *data.UsersStore, chats *data.ChatsStore, groups *data.GroupsStore) *Directory {
	return &Directory{users: users, chats: chats, groups: groups}
}

// ListForUser returns the user's conversations, most recent first.
// Conversations that never carried a message sort last. A valid identity
// with no conversations gets an empty list, not an error.
func (d *Directory) ListForUser(ctx context.Context, user string) ([]*Summary, error) {
	chats, err := d.chats.ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	groups, err := d.groups.ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	// resolve every chat partner in one query
	var partnerIDs []string
	for _, c := range chats {
		for _, p := range c.ParticipantIDs {
			if p != user {
				partnerIDs = append(partnerIDs, p)
			}
		}
	}
	partners, err := d.users.GetManyByIdentity(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]*Summary, 0, len(chats)+len(groups))
	for _, c := range chats {
		var other *data.User
		for _, p := range c.ParticipantIDs {
			if p != user {
				other = partners[p]
				break
			}
		}
		if other == nil {
			// partner profile was never synced; skip rather than render a
			// broken row
			continue
		}
		summaries = append(summaries, &Summary{
			Kind:          data.KindDirect,
			ID:            c.ID.Hex(),
			LastMessageAt: c.LastMessageAt,
			Preview:       c.LastMessagePreview,
			Unread:        containsIdentity(c.UnreadBy, user),
			OtherUser:     other,
			OtherOnline:   presence.IsOnline(other.LastSeen),
		})
	}
	for _, g := range groups {
		summaries = append(summaries, &Summary{
			Kind:          data.KindGroup,
			ID:            g.ID.Hex(),
			LastMessageAt: g.LastMessageAt,
			Preview:       g.LastMessagePreview,
			Unread:        containsIdentity(g.UnreadBy, user),
			Name:          g.Name,
			AvatarURL:     g.AvatarURL,
			MemberCount:   len(g.MemberIDs),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

// SearchUsers finds contacts by name or handle, excluding the requester.
func (d *Directory) SearchUsers(ctx context.Context, requester, term string) ([]*data.User, error) {
	return d.users.Search(ctx, requester, term)
}

func containsIdentity(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
