package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chathub/sessionhub/internal/hub/presence"
	"github.com/chathub/sessionhub/internal/hub/room"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/hub/stats"
	"github.com/chathub/sessionhub/internal/models"
	"github.com/chathub/sessionhub/internal/security/ratelimit"
)

type fakeStore struct {
	mu        sync.Mutex
	messages  []models.Message
	dms       []models.Message
	blocked   map[[2]int64]bool
	reactions map[int64]models.ReactionSummary
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocked:   make(map[[2]int64]bool),
		reactions: make(map[int64]models.ReactionSummary),
	}
}

func (f *fakeStore) SendRoomMessage(ctx context.Context, roomName string, authorID int64, authorUsername, content string, parentID int64, mentions []int64) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := models.Message{ID: f.nextID, Kind: models.MessageKindRoom, RoomName: roomName, AuthorID: authorID, AuthorUsername: authorUsername, Content: content, ParentID: parentID, Mentions: mentions, CreatedAt: time.Unix(0, 0)}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) SendDirectMessage(ctx context.Context, authorID int64, authorUsername string, recipientID int64, content string, parentID int64) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := models.Message{ID: f.nextID, Kind: models.MessageKindDirect, RecipientID: recipientID, AuthorID: authorID, AuthorUsername: authorUsername, Content: content, ParentID: parentID, CreatedAt: time.Unix(0, 0)}
	f.dms = append(f.dms, msg)
	return msg, nil
}

func (f *fakeStore) GetRoomHistory(ctx context.Context, roomName string, limit int, beforeID int64, includeThreads bool) ([]models.Message, error) {
	return f.messages, nil
}

func (f *fakeStore) GetDMHistory(ctx context.Context, userA, userB int64, limit int, beforeID int64) ([]models.Message, error) {
	return f.dms, nil
}

func (f *fakeStore) EditMessage(ctx context.Context, messageID, editorID int64, newContent string) error {
	return nil
}

func (f *fakeStore) DeleteMessage(ctx context.Context, messageID, actorID int64, isModerator bool) error {
	return nil
}

func (f *fakeStore) MarkDMRead(ctx context.Context, messageID, recipientID int64) error {
	return nil
}

func (f *fakeStore) IsBlocked(ctx context.Context, blocker, blocked int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[[2]int64{blocker, blocked}], nil
}

func (f *fakeStore) AddReaction(ctx context.Context, messageID, userID int64, username, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := f.reactions[messageID]
	summary.MessageID = messageID
	if summary.Reactions == nil {
		summary.Reactions = make(map[string][]models.ReactionUser)
	}
	summary.Reactions[tag] = append(summary.Reactions[tag], models.ReactionUser{UserID: userID, Username: username})
	summary.TotalCount++
	f.reactions[messageID] = summary
	return nil
}

func (f *fakeStore) RemoveReaction(ctx context.Context, messageID, userID int64, tag string) error {
	return nil
}

func (f *fakeStore) GetReactions(ctx context.Context, messageID int64) (models.ReactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactions[messageID], nil
}

func (f *fakeStore) PinMessage(ctx context.Context, messageID int64, roomName string, actorID int64) error {
	return nil
}

func (f *fakeStore) UnpinMessage(ctx context.Context, messageID int64, roomName string, actorID int64) error {
	return nil
}

type fakePresenceStore struct {
	mu    sync.Mutex
	state map[int64]models.Presence
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{state: make(map[int64]models.Presence)}
}

func (f *fakePresenceStore) SetPresence(ctx context.Context, p models.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[p.UserID] = p
	return nil
}

func (f *fakePresenceStore) GetPresence(ctx context.Context, userID int64) (models.Presence, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.state[userID]
	return p, ok, nil
}

func (f *fakePresenceStore) DeletePresence(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, userID)
	return nil
}

func (f *fakePresenceStore) PublishPresence(ctx context.Context, p models.Presence) error {
	return nil
}

type noopLogger struct{}

func (noopLogger) Warn(ctx context.Context, msg string, args ...interface{})  {}
func (noopLogger) Error(ctx context.Context, msg string, args ...interface{}) {}

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeSender) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return true
}

func (f *fakeSender) Close() {}

func (f *fakeSender) frames() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(f.sent))
	for _, raw := range f.sent {
		var m map[string]interface{}
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore, *session.Registry, *room.Registry) {
	t.Helper()
	store := newFakeStore()
	sessions := session.NewRegistry(nil)
	rooms := room.NewRegistry()
	rl := ratelimit.New()
	tracker := presence.NewTracker(newFakePresenceStore(), 5*time.Minute)
	h := New(store, sessions, rooms, rl, tracker, stats.New(), noopLogger{})
	return h, store, sessions, rooms
}

func TestDispatch_JoinThenMessage(t *testing.T) {
	h, store, sessions, rooms := newTestHandler(t)
	sender := &fakeSender{}
	sess := session.NewSession(1, "alice", models.RoleUser, sender)
	sessions.Register(sess)

	require.NoError(t, h.Dispatch(context.Background(), sess, []byte(`{"type":"join","data":{"room":"general"}}`)))
	assert.True(t, rooms.IsMember("general", 1))

	require.NoError(t, h.Dispatch(context.Background(), sess, []byte(`{"type":"message","data":{"room":"general","content":"hello there"}}`)))
	require.Len(t, store.messages, 1)
	assert.Equal(t, "hello there", store.messages[0].Content)

	frames := sender.frames()
	var sawJoinAck, sawMessage bool
	for _, f := range frames {
		switch f["type"] {
		case "join_ack":
			sawJoinAck = true
		case "message":
			sawMessage = true
		}
	}
	assert.True(t, sawJoinAck)
	assert.True(t, sawMessage)
}

func TestDispatch_MessageWithoutJoinIsDenied(t *testing.T) {
	h, _, sessions, _ := newTestHandler(t)
	sender := &fakeSender{}
	sess := session.NewSession(2, "bob", models.RoleUser, sender)
	sessions.Register(sess)

	err := h.Dispatch(context.Background(), sess, []byte(`{"type":"message","data":{"room":"general","content":"hi"}}`))
	require.Error(t, err)
}

func TestDispatch_DirectMessageBlocked(t *testing.T) {
	h, store, sessions, _ := newTestHandler(t)
	store.blocked[[2]int64{2, 1}] = true // user 2 blocked user 1

	sender := &fakeSender{}
	sess := session.NewSession(1, "alice", models.RoleUser, sender)
	sessions.Register(sess)

	err := h.Dispatch(context.Background(), sess, []byte(`{"type":"dm","data":{"to":2,"content":"hey"}}`))
	require.NoError(t, err)
	assert.Empty(t, store.dms)
}

func TestDispatch_ReactionAddBroadcasts(t *testing.T) {
	h, _, sessions, _ := newTestHandler(t)
	sender := &fakeSender{}
	sess := session.NewSession(1, "alice", models.RoleUser, sender)
	sessions.Register(sess)

	err := h.Dispatch(context.Background(), sess, []byte(`{"type":"reaction_add","data":{"messageId":5,"emoji":"like"}}`))
	require.NoError(t, err)

	var sawUpdate bool
	for _, f := range sender.frames() {
		if f["type"] == "reaction_update" {
			sawUpdate = true
		}
	}
	assert.True(t, sawUpdate)
}

func TestDispatch_UnknownFrameType(t *testing.T) {
	h, _, sessions, _ := newTestHandler(t)
	sess := session.NewSession(1, "alice", models.RoleUser, &fakeSender{})
	sessions.Register(sess)

	err := h.Dispatch(context.Background(), sess, []byte(`{"type":"bogus","data":{}}`))
	require.Error(t, err)
}

func TestDispatch_Ping(t *testing.T) {
	h, _, sessions, _ := newTestHandler(t)
	sender := &fakeSender{}
	sess := session.NewSession(1, "alice", models.RoleUser, sender)
	sessions.Register(sess)

	require.NoError(t, h.Dispatch(context.Background(), sess, []byte(`{"type":"ping"}`)))
	frames := sender.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "pong", frames[0]["type"])
}
