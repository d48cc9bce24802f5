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

// GroupsStore manages group conversations, their membership/admin roles
// and their message log.
//
// Invariants held by every mutation here: admin_ids ⊆ member_ids, both
// non-empty, and the creator can never be stripped of the ability to
// delete the group.
type GroupsStore struct {
	coll *mongo.Collection
	log  messageLog
}

// NewGroupsStore returns a GroupsStore over the groups and group_messages
// collections.
func NewGroupsStore(groups, groupMessages *mongo.Collection) *GroupsStore {
	return &GroupsStore{
		coll: groups,
		log:  messageLog{coll: groupMessages, kind: KindGroup},
	}
}

// CreateGroupParams carries explicit group creation input. Member
// existence is validated by the caller against the users store; this
// store only enforces structural invariants.
type CreateGroupParams struct {
	Name        string
	Description string
	AvatarURL   string
	Creator     string
	MemberIDs   []string
}

// Create inserts a group. The creator is always a member and the sole
// initial admin; duplicate initial members are collapsed.
func (s *GroupsStore) Create(ctx context.Context, p CreateGroupParams) (*Group, error) {
	members := []string{p.Creator}
	for _, id := range p.MemberIDs {
		if !contains(members, id) {
			members = append(members, id)
		}
	}

	group := &Group{
		Name:               p.Name,
		Description:        p.Description,
		AvatarURL:          p.AvatarURL,
		CreatedBy:          p.Creator,
		CreatedAt:          time.Now(),
		MemberIDs:          members,
		AdminIDs:           []string{p.Creator},
		LastMessageAt:      time.Now(),
		LastMessagePreview: "Group created",
		UnreadBy:           []string{},
	}

	result, err := s.coll.InsertOne(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	group.ID = result.InsertedID.(bson.ObjectID)
	return group, nil
}

// Get returns one group by hex id.
func (s *GroupsStore) Get(ctx context.Context, id string) (*Group, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}

	var group Group
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&group); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &group, nil
}

// ListForUser returns every group the identity belongs to.
func (s *GroupsStore) ListForUser(ctx context.Context, user string) ([]*Group, error) {
	cur, err := s.coll.Find(ctx, bson.M{"member_ids": user},
		options.Find().SetSort(bson.M{"last_message_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer cur.Close(ctx)

	var groups []*Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	return groups, nil
}

// GroupUpdate carries a partial metadata edit; nil fields are untouched.
type GroupUpdate struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

// Update applies a metadata edit. Admin only.
func (s *GroupsStore) Update(ctx context.Context, groupID, actor string, p GroupUpdate) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.AdminIDs, actor) {
		return fmt.Errorf("update group %s: %w", groupID, ErrForbidden)
	}

	updates := bson.M{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = *p.AvatarURL
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": group.ID}, bson.M{"$set": updates}); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// AddMember adds an identity to the group. Admin only; the caller is
// responsible for checking the identity exists in the user directory.
func (s *GroupsStore) AddMember(ctx context.Context, groupID, actor, member string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.AdminIDs, actor) {
		return fmt.Errorf("add member to group %s: %w", groupID, ErrForbidden)
	}
	if contains(group.MemberIDs, member) {
		return fmt.Errorf("identity %s already a member: %w", member, ErrInvalidState)
	}

	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": group.ID},
		bson.M{"$addToSet": bson.M{"member_ids": member}}); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes an identity from members and admins. Admin only.
// Removing the sole remaining admin is rejected so the group never ends up
// ungoverned.
func (s *GroupsStore) RemoveMember(ctx context.Context, groupID, actor, member string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.AdminIDs, actor) {
		return fmt.Errorf("remove member from group %s: %w", groupID, ErrForbidden)
	}
	if len(group.AdminIDs) == 1 && group.AdminIDs[0] == member {
		return fmt.Errorf("cannot remove the last admin: %w", ErrInvalidState)
	}

	return s.dropFromGroup(ctx, group, member)
}

// Leave removes the caller from the group. The sole remaining admin must
// promote a replacement before leaving.
func (s *GroupsStore) Leave(ctx context.Context, groupID, user string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.MemberIDs, user) {
		return fmt.Errorf("user %s in group %s: %w", user, groupID, ErrNotAMember)
	}
	if len(group.AdminIDs) == 1 && group.AdminIDs[0] == user {
		return fmt.Errorf("last admin must assign a replacement before leaving: %w", ErrInvalidState)
	}

	return s.dropFromGroup(ctx, group, user)
}

func (s *GroupsStore) dropFromGroup(ctx context.Context, group *Group, member string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": group.ID}, bson.M{
		"$pull": bson.M{
			"member_ids": member,
			"admin_ids":  member,
			"unread_by":  member,
		},
	})
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// Promote makes an existing member an admin. Admin only.
func (s *GroupsStore) Promote(ctx context.Context, groupID, actor, member string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.AdminIDs, actor) {
		return fmt.Errorf("promote in group %s: %w", groupID, ErrForbidden)
	}
	if !contains(group.MemberIDs, member) {
		return fmt.Errorf("identity %s in group %s: %w", member, groupID, ErrNotAMember)
	}
	if contains(group.AdminIDs, member) {
		return fmt.Errorf("identity %s already an admin: %w", member, ErrInvalidState)
	}

	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": group.ID},
		bson.M{"$addToSet": bson.M{"admin_ids": member}}); err != nil {
		return fmt.Errorf("promote member: %w", err)
	}
	return nil
}

// Delete removes the group and cascade-deletes its entire message log.
// Creator only; this is the single hard delete in the system.
func (s *GroupsStore) Delete(ctx context.Context, groupID, actor string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != actor {
		return fmt.Errorf("delete group %s: %w", groupID, ErrForbidden)
	}

	if err := s.log.purge(ctx, group.ID.Hex()); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": group.ID}); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// Send appends a message to the group. The sender must be a member; a
// profile snapshot is denormalized onto the message so pages render
// without a user join. The same best-effort preview/unread patch as
// direct chats follows the insert, with unread_by replaced by every
// member except the sender.
func (s *GroupsStore) Send(ctx context.Context, groupID string, sender *User, content, mediaURL, mediaKind string) (*Message, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !contains(group.MemberIDs, sender.Identity) {
		return nil, fmt.Errorf("sender %s in group %s: %w", sender.Identity, groupID, ErrNotAMember)
	}

	msg := &Message{
		ConversationID: group.ID.Hex(),
		SenderID:       sender.Identity,
		Content:        content,
		MediaURL:       mediaURL,
		MediaKind:      mediaKind,
		ReadBy:         []string{sender.Identity},
		Sender: &SenderSnapshot{
			Name:      sender.Name,
			AvatarURL: sender.AvatarURL,
		},
	}
	if err := s.log.insert(ctx, msg); err != nil {
		return nil, err
	}

	unread := without(group.MemberIDs, sender.Identity)

	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": group.ID}, bson.M{"$set": bson.M{
		"last_message_at":      msg.SentAt,
		"last_message_preview": preview(content),
		"unread_by":            unread,
	}})
	if err != nil {
		log.Printf("group %s: preview patch failed after send: %v", groupID, err)
	}
	return msg, nil
}

// Page returns one page of the group's log, oldest-first for display.
func (s *GroupsStore) Page(ctx context.Context, groupID string, limit int64, cursor Cursor) ([]*Message, Cursor, error) {
	return s.log.page(ctx, groupID, limit, cursor)
}

// MarkRead clears the caller's unread flag and fans their identity out
// into read_by of every group message they did not send.
func (s *GroupsStore) MarkRead(ctx context.Context, groupID, user string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.MemberIDs, user) {
		return fmt.Errorf("user %s in group %s: %w", user, groupID, ErrNotAMember)
	}

	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": group.ID},
		bson.M{"$pull": bson.M{"unread_by": user}}); err != nil {
		return fmt.Errorf("clear unread flag: %w", err)
	}
	return s.log.markAllRead(ctx, group.ID.Hex(), user)
}

// MarkMessagesRead unions the caller into read_by of the listed group
// messages. Unknown ids are skipped silently.
func (s *GroupsStore) MarkMessagesRead(ctx context.Context, groupID, user string, messageIDs []string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !contains(group.MemberIDs, user) {
		return fmt.Errorf("user %s in group %s: %w", user, groupID, ErrNotAMember)
	}
	return s.log.markRead(ctx, group.ID.Hex(), user, messageIDs)
}

// React records the user's reaction on a group message.
func (s *GroupsStore) React(ctx context.Context, messageID, user, symbol string) error {
	return s.log.react(ctx, messageID, user, symbol)
}

// SoftDelete tombstones a group message. Allowed for the original sender
// or any admin of the owning group.
func (s *GroupsStore) SoftDelete(ctx context.Context, messageID, requester string) error {
	msg, err := s.log.get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requester {
		group, err := s.Get(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if !contains(group.AdminIDs, requester) {
			return fmt.Errorf("delete message %s: %w", messageID, ErrForbidden)
		}
	}
	return s.log.tombstone(ctx, msg.ID)
}

// GetMessage returns one group message by id.
func (s *GroupsStore) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	return s.log.get(ctx, messageID)
}

// Search returns the group's messages containing the term.
func (s *GroupsStore) Search(ctx context.Context, groupID, term string) ([]*Message, error) {
	return s.log.search(ctx, groupID, term)
}
