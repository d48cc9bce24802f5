package data

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/seyikole/chatlink/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations. One document per external
// identity; the identity string comes from the auth provider and is
// treated as opaque.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// UpsertParams carries the profile fields synced on session activity.
type UpsertParams struct {
	Identity  string
	Email     string
	Name      string
	AvatarURL string
	Username  string
	Bio       string
	Theme     string

	// PreserveAvatar keeps an existing stored avatar instead of
	// overwriting it with the provider's copy (set when the user has
	// uploaded a custom picture).
	PreserveAvatar bool
}

// Upsert inserts the user on first sight and patches the profile after
// that. Called on every session activity tick.
func (u *UsersStore) Upsert(ctx context.Context, p UpsertParams) (*User, error) {
	var existing User
	err := u.coll.FindOne(ctx, bson.M{"identity": p.Identity}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		theme := p.Theme
		if theme == "" {
			theme = "system"
		}
		user := &User{
			Identity:  p.Identity,
			Email:     p.Email,
			Name:      p.Name,
			AvatarURL: p.AvatarURL,
			Username:  p.Username,
			Bio:       p.Bio,
			LastSeen:  time.Now(),
			Theme:     theme,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		result, err := u.coll.InsertOne(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		user.ID = result.InsertedID.(bson.ObjectID)
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := bson.M{
		"email":      p.Email,
		"name":       p.Name,
		"username":   p.Username,
		"bio":        p.Bio,
		"updated_at": time.Now(),
	}
	if p.Theme != "" {
		updates["theme"] = p.Theme
	}
	// only replace the avatar when the caller didn't ask to preserve it,
	// or when there is nothing stored to preserve
	if !p.PreserveAvatar || existing.AvatarURL == "" {
		updates["avatar_url"] = p.AvatarURL
	}

	if _, err := u.coll.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": updates}); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u.GetByIdentity(ctx, p.Identity)
}

// GetByIdentity finds a user by external identity.
func (u *UsersStore) GetByIdentity(ctx context.Context, identity string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"identity": identity}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("user %s: %w", identity, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetManyByIdentity returns the users for the given identities, keyed by
// identity. Absent identities are simply missing from the map.
func (u *UsersStore) GetManyByIdentity(ctx context.Context, identities []string) (map[string]*User, error) {
	if len(identities) == 0 {
		return map[string]*User{}, nil
	}

	cur, err := u.coll.Find(ctx, bson.M{"identity": bson.M{"$in": identities}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	byIdentity := make(map[string]*User, len(users))
	for _, usr := range users {
		byIdentity[usr.Identity] = usr
	}
	return byIdentity, nil
}

// Missing returns the subset of identities with no user document. Used by
// the group store's creation path to validate member lists.
func (u *UsersStore) Missing(ctx context.Context, identities []string) ([]string, error) {
	found, err := u.GetManyByIdentity(ctx, identities)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range identities {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// UpdateLastSeen refreshes the presence heartbeat timestamp.
func (u *UsersStore) UpdateLastSeen(ctx context.Context, identity string) error {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"identity": identity},
		bson.M{"$set": bson.M{"last_seen": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", identity, ErrNotFound)
	}
	return nil
}

// ProfileUpdate carries a partial profile edit; nil fields are untouched.
type ProfileUpdate struct {
	Name      *string
	Username  *string
	Bio       *string
	AvatarURL *string
}

// UpdateProfile applies a partial profile edit.
func (u *UsersStore) UpdateProfile(ctx context.Context, identity string, p ProfileUpdate) error {
	updates := bson.M{"updated_at": time.Now()}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Username != nil {
		updates["username"] = *p.Username
	}
	if p.Bio != nil {
		updates["bio"] = *p.Bio
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = *p.AvatarURL
	}

	result, err := u.coll.UpdateOne(ctx, bson.M{"identity": identity}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", identity, ErrNotFound)
	}
	return nil
}

// UpdateTheme stores the user's theme preference.
func (u *UsersStore) UpdateTheme(ctx context.Context, identity, theme string) error {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"identity": identity},
		bson.M{"$set": bson.M{"theme": theme, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", identity, ErrNotFound)
	}
	return nil
}

// Search returns users whose name or username contains the term,
// case-insensitively, excluding the requester. An empty or whitespace-only
// term yields no results rather than the whole directory.
func (u *UsersStore) Search(ctx context.Context, requester, term string) ([]*User, error) {
	term = normalize.Term(term)
	if term == "" {
		return nil, nil
	}

	pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	filter := bson.M{
		"identity": bson.M{"$ne": requester},
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"username": pattern},
		},
	}

	cur, err := u.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
