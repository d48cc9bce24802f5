package data

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func newChatStores(t *testing.T) (*UsersStore, *ChatsStore) {
	t.Helper()
	c := setupDB(t)
	return NewUsersStore(c.UsersCollection()), NewChatsStore(c.ChatsCollection(), c.MessagesCollection())
}

func TestChatsGetOrCreate(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")

	chat, created, err := chats.GetOrCreate(ctx, "user_a", "user_b")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !created {
		t.Fatal("expected a new chat on first contact")
	}

	// the pair is deduplicated regardless of argument order
	again, created, err := chats.GetOrCreate(ctx, "user_b", "user_a")
	if err != nil {
		t.Fatalf("GetOrCreate (again) failed: %v", err)
	}
	if created {
		t.Fatal("second call must reuse the existing chat")
	}
	if again.ID != chat.ID {
		t.Fatalf("expected same chat, got %s and %s", chat.ID.Hex(), again.ID.Hex())
	}

	if _, _, err := chats.GetOrCreate(ctx, "user_a", "user_a"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("chat with self should be ErrInvalidState, got %v", err)
	}

	// participants are stored in canonical sorted order regardless of who
	// initiated
	if !reflect.DeepEqual(again.ParticipantIDs, []string{"user_a", "user_b"}) {
		t.Fatalf("participants not canonical: %v", again.ParticipantIDs)
	}
}

func TestChatsGetOrCreateConcurrent(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")

	// both participants open the chat at the same time, from opposite
	// argument orders; exactly one insert may win
	const callers = 8
	results := make([]*Chat, callers)
	createdFlags := make([]bool, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "user_a", "user_b"
			if i%2 == 1 {
				a, b = b, a
			}
			results[i], createdFlags[i], errs[i] = chats.GetOrCreate(ctx, a, b)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Fatalf("caller %d got a different chat: %s vs %s",
				i, results[i].ID.Hex(), results[0].ID.Hex())
		}
		if createdFlags[i] {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}

	listed, err := chats.ListForUser(ctx, "user_a")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("pair stored %d times", len(listed))
	}
}

func TestChatsSendSetsUnreadAndPreview(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, err := chats.GetOrCreate(ctx, "user_a", "user_b")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	msg, err := chats.Send(ctx, chat.ID.Hex(), "user_a", "hi", "", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// sender is in read_by from creation
	if !reflect.DeepEqual(msg.ReadBy, []string{"user_a"}) {
		t.Fatalf("read_by after send = %v", msg.ReadBy)
	}

	got, err := chats.Get(ctx, chat.ID.Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got.UnreadBy, []string{"user_b"}) {
		t.Fatalf("unread_by after send = %v, want exactly the recipient", got.UnreadBy)
	}
	if got.LastMessagePreview != "hi" {
		t.Fatalf("preview = %q", got.LastMessagePreview)
	}

	// another send replaces the unread set, it does not accumulate
	if _, err := chats.Send(ctx, chat.ID.Hex(), "user_b", "hello back", "", ""); err != nil {
		t.Fatalf("Send (reply) failed: %v", err)
	}
	got, _ = chats.Get(ctx, chat.ID.Hex())
	if !reflect.DeepEqual(got.UnreadBy, []string{"user_a"}) {
		t.Fatalf("unread_by after reply = %v, want exactly the other participant", got.UnreadBy)
	}

	// outsiders cannot send
	if _, err := chats.Send(ctx, chat.ID.Hex(), "user_x", "sneak", "", ""); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestChatsMarkReadIdempotent(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	chatID := chat.ID.Hex()

	msg, err := chats.Send(ctx, chatID, "user_a", "hi", "", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := chats.MarkRead(ctx, chatID, "user_b"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	got, err := chats.GetMessage(ctx, msg.ID.Hex())
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if !reflect.DeepEqual(got.ReadBy, []string{"user_a", "user_b"}) {
		t.Fatalf("read_by after MarkRead = %v", got.ReadBy)
	}
	chatGot, _ := chats.Get(ctx, chatID)
	if len(chatGot.UnreadBy) != 0 {
		t.Fatalf("unread_by should be empty, got %v", chatGot.UnreadBy)
	}

	// calling again changes nothing (idempotent, read_by never shrinks)
	if err := chats.MarkRead(ctx, chatID, "user_b"); err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}
	got2, _ := chats.GetMessage(ctx, msg.ID.Hex())
	if !reflect.DeepEqual(got2.ReadBy, got.ReadBy) {
		t.Fatalf("MarkRead not idempotent: %v vs %v", got2.ReadBy, got.ReadBy)
	}

	if err := chats.MarkRead(ctx, chatID, "user_x"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember for outsider, got %v", err)
	}
}

func TestChatsMarkMessagesRead(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	chatID := chat.ID.Hex()

	m1, _ := chats.Send(ctx, chatID, "user_a", "one", "", "")
	m2, _ := chats.Send(ctx, chatID, "user_a", "two", "", "")

	// unknown and malformed ids are skipped silently
	ids := []string{m1.ID.Hex(), "not-a-hex-id", "ffffffffffffffffffffffff"}
	if err := chats.MarkMessagesRead(ctx, chatID, "user_b", ids); err != nil {
		t.Fatalf("MarkMessagesRead failed: %v", err)
	}

	got1, _ := chats.GetMessage(ctx, m1.ID.Hex())
	if !reflect.DeepEqual(got1.ReadBy, []string{"user_a", "user_b"}) {
		t.Fatalf("m1 read_by = %v", got1.ReadBy)
	}
	got2, _ := chats.GetMessage(ctx, m2.ID.Hex())
	if !reflect.DeepEqual(got2.ReadBy, []string{"user_a"}) {
		t.Fatalf("m2 should be untouched, read_by = %v", got2.ReadBy)
	}

	// message-level marking does not clear the conversation flag
	chatGot, _ := chats.Get(ctx, chatID)
	if !reflect.DeepEqual(chatGot.UnreadBy, []string{"user_b"}) {
		t.Fatalf("unread_by should survive MarkMessagesRead, got %v", chatGot.UnreadBy)
	}
}

func TestChatsReactions(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	msg, _ := chats.Send(ctx, chat.ID.Hex(), "user_a", "hi", "", "")
	id := msg.ID.Hex()

	if err := chats.React(ctx, id, "user_b", "👍"); err != nil {
		t.Fatalf("React failed: %v", err)
	}
	if err := chats.React(ctx, id, "user_a", "😂"); err != nil {
		t.Fatalf("React (second user) failed: %v", err)
	}
	// repeat reaction from the same user overwrites in place
	if err := chats.React(ctx, id, "user_b", "❤️"); err != nil {
		t.Fatalf("React (overwrite) failed: %v", err)
	}

	got, _ := chats.GetMessage(ctx, id)
	want := []Reaction{{UserID: "user_b", Symbol: "❤️"}, {UserID: "user_a", Symbol: "😂"}}
	if !reflect.DeepEqual(got.Reactions, want) {
		t.Fatalf("reactions = %v, want %v", got.Reactions, want)
	}

	if err := chats.React(ctx, "ffffffffffffffffffffffff", "user_a", "👍"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown message, got %v", err)
	}
}

func TestChatsReactionsConcurrent(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	msg, _ := chats.Send(ctx, chat.ID.Hex(), "user_a", "hi", "", "")
	id := msg.ID.Hex()

	// reactions from different users must all survive, whatever the
	// interleaving
	reactors := map[string]string{
		"user_a": "😂",
		"user_b": "👍",
		"user_c": "❤️",
		"user_d": "🎉",
	}
	var wg sync.WaitGroup
	for user, symbol := range reactors {
		wg.Add(1)
		go func(user, symbol string) {
			defer wg.Done()
			if err := chats.React(ctx, id, user, symbol); err != nil {
				t.Errorf("React(%s) failed: %v", user, err)
			}
		}(user, symbol)
	}
	wg.Wait()

	got, err := chats.GetMessage(ctx, id)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if len(got.Reactions) != len(reactors) {
		t.Fatalf("expected %d reactions, got %v", len(reactors), got.Reactions)
	}
	seen := map[string]string{}
	for _, r := range got.Reactions {
		seen[r.UserID] = r.Symbol
	}
	if !reflect.DeepEqual(seen, reactors) {
		t.Fatalf("reactions = %v, want %v", seen, reactors)
	}

	// a same-user storm still leaves exactly one entry
	var burst sync.WaitGroup
	symbols := []string{"👍", "❤️", "😂", "🎉", "👀"}
	for _, s := range symbols {
		burst.Add(1)
		go func(s string) {
			defer burst.Done()
			if err := chats.React(ctx, id, "user_e", s); err != nil {
				t.Errorf("React(user_e, %s) failed: %v", s, err)
			}
		}(s)
	}
	burst.Wait()

	valid := map[string]bool{}
	for _, s := range symbols {
		valid[s] = true
	}
	got, _ = chats.GetMessage(ctx, id)
	entries := 0
	for _, r := range got.Reactions {
		if r.UserID == "user_e" {
			entries++
			if !valid[r.Symbol] {
				t.Fatalf("unexpected symbol %q", r.Symbol)
			}
		}
	}
	if entries != 1 {
		t.Fatalf("same user stored %d reaction entries", entries)
	}
}

func TestChatsSoftDelete(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	msg, _ := chats.Send(ctx, chat.ID.Hex(), "user_a", "secret", "https://cdn.example.com/pic.jpg", "image")
	_ = chats.React(ctx, msg.ID.Hex(), "user_b", "👍")
	_ = chats.MarkRead(ctx, chat.ID.Hex(), "user_b")

	// only the sender can delete a direct message
	if err := chats.SoftDelete(ctx, msg.ID.Hex(), "user_b"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := chats.SoftDelete(ctx, msg.ID.Hex(), "user_a"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	got, err := chats.GetMessage(ctx, msg.ID.Hex())
	if err != nil {
		t.Fatalf("tombstoned message must keep its id: %v", err)
	}
	if !got.IsDeleted || got.Content != Tombstone {
		t.Fatalf("tombstone not applied: %+v", got)
	}
	if got.MediaURL != "" || got.MediaKind != "" {
		t.Fatalf("media must be cleared: %+v", got)
	}
	if !reflect.DeepEqual(got.ReadBy, []string{"user_a", "user_b"}) {
		t.Fatalf("read_by must survive soft delete, got %v", got.ReadBy)
	}
	if len(got.Reactions) != 1 {
		t.Fatalf("reactions must survive soft delete, got %v", got.Reactions)
	}
}

func TestChatsPaging(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	chatID := chat.ID.Hex()

	for i := 0; i < 7; i++ {
		if _, err := chats.Send(ctx, chatID, "user_a", fmt.Sprintf("m%d", i), "", ""); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	// first page holds the newest 3, displayed oldest-first
	page1, next, err := chats.Page(ctx, chatID, 3, "")
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page1) != 3 || next == "" {
		t.Fatalf("page1 len=%d next=%q", len(page1), next)
	}
	if page1[0].Content != "m4" || page1[2].Content != "m6" {
		t.Fatalf("page1 order wrong: %s .. %s", page1[0].Content, page1[2].Content)
	}

	// next cursor walks into older messages, disjoint from page 1
	page2, _, err := chats.Page(ctx, chatID, 3, next)
	if err != nil {
		t.Fatalf("Page 2 failed: %v", err)
	}
	if page2[0].Content != "m1" || page2[2].Content != "m3" {
		t.Fatalf("page2 order wrong: %s .. %s", page2[0].Content, page2[2].Content)
	}

	// invalid cursor silently resets to the first page
	reset, _, err := chats.Page(ctx, chatID, 3, "garbage")
	if err != nil {
		t.Fatalf("Page (bad cursor) failed: %v", err)
	}
	if reset[0].Content != page1[0].Content {
		t.Fatal("invalid cursor should reset to the first page")
	}

	// exhausted log yields no next cursor
	_, last, err := chats.Page(ctx, chatID, 10, "")
	if err != nil {
		t.Fatalf("Page (all) failed: %v", err)
	}
	if last != "" {
		t.Fatalf("expected empty next cursor, got %q", last)
	}
}

func TestChatsSearch(t *testing.T) {
	users, chats := newChatStores(t)
	ctx := context.Background()

	seedUser(t, users, "user_a", "A")
	seedUser(t, users, "user_b", "B")
	chat, _, _ := chats.GetOrCreate(ctx, "user_a", "user_b")
	chatID := chat.ID.Hex()

	_, _ = chats.Send(ctx, chatID, "user_a", "the quick brown fox", "", "")
	_, _ = chats.Send(ctx, chatID, "user_b", "lazy dog", "", "")

	got, err := chats.Search(ctx, chatID, "QUICK")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "the quick brown fox" {
		t.Fatalf("unexpected search result: %+v", got)
	}

	got, err = chats.Search(ctx, chatID, "  ")
	if err != nil {
		t.Fatalf("Search (empty) failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("whitespace term should match nothing, got %d", len(got))
	}
}
