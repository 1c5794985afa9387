// Package handler implements the Message Handler (C9): the single
// orchestrator every inbound wire frame passes through, wiring together the
// Content Filter, Rate Limiter, Session Registry, Room Registry, Message
// Store, Reaction Engine, Permission Gate, Presence Tracker and Hub
// Statistics. Grounded on original_source/src/hub/room.rs and
// src/hub/dm.rs's dispatch-by-message-type structure and 0DukePan's
// rooms.Client.readPump switch.
package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/hub/presence"
	"github.com/chathub/sessionhub/internal/hub/room"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/hub/stats"
	"github.com/chathub/sessionhub/internal/models"
	"github.com/chathub/sessionhub/internal/permission"
	"github.com/chathub/sessionhub/internal/reaction"
	"github.com/chathub/sessionhub/internal/security/contentfilter"
	"github.com/chathub/sessionhub/internal/security/ratelimit"
)

const dbOperationTimeout = 5 * time.Second

// Store is the subset of store.Store the handler depends on, kept narrow so
// unit tests can substitute an in-memory fake.
type Store interface {
	SendRoomMessage(ctx context.Context, room string, authorID int64, authorUsername, content string, parentID int64, mentions []int64) (models.Message, error)
	SendDirectMessage(ctx context.Context, authorID int64, authorUsername string, recipientID int64, content string, parentID int64) (models.Message, error)
	GetRoomHistory(ctx context.Context, room string, limit int, beforeID int64, includeThreads bool) ([]models.Message, error)
	GetDMHistory(ctx context.Context, userA, userB int64, limit int, beforeID int64) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID, editorID int64, newContent string) error
	DeleteMessage(ctx context.Context, messageID, actorID int64, isModerator bool) error
	MarkDMRead(ctx context.Context, messageID, recipientID int64) error
	IsBlocked(ctx context.Context, blocker, blocked int64) (bool, error)
	AddReaction(ctx context.Context, messageID, userID int64, username, tag string) error
	RemoveReaction(ctx context.Context, messageID, userID int64, tag string) error
	GetReactions(ctx context.Context, messageID int64) (models.ReactionSummary, error)
	PinMessage(ctx context.Context, messageID int64, room string, actorID int64) error
	UnpinMessage(ctx context.Context, messageID int64, room string, actorID int64) error
}

// Logger is the minimal logging surface the handler needs.
type Logger interface {
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// Frame is the inbound wire shape: {type, data}.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// outFrame is the outbound wire shape.
type outFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Handler is the Message Handler (C9).
type Handler struct {
	store       Store
	sessions    *session.Registry
	rooms       *room.Registry
	rateLimiter *ratelimit.Limiter
	presence    *presence.Tracker
	stats       *stats.Stats
	logger      Logger
}

func New(store Store, sessions *session.Registry, rooms *room.Registry, rateLimiter *ratelimit.Limiter, presenceTracker *presence.Tracker, hubStats *stats.Stats, logger Logger) *Handler {
	return &Handler{
		store:       store,
		sessions:    sessions,
		rooms:       rooms,
		rateLimiter: rateLimiter,
		presence:    presenceTracker,
		stats:       hubStats,
		logger:      logger,
	}
}

// Dispatch routes one inbound frame for the session that sent it. Any
// apperror.Error returned is translated into an `error` frame by the caller
// (the ws.Client's read loop); a frame that is not valid JSON is reported as
// apperror.InvalidInput.
func (h *Handler) Dispatch(ctx context.Context, sess *session.Session, raw []byte) error {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed frame", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	switch frame.Type {
	case "message":
		return h.handleRoomMessage(ctx, sess, frame.Data)
	case "dm":
		return h.handleDirectMessage(ctx, sess, frame.Data)
	case "join":
		return h.handleJoin(ctx, sess, frame.Data)
	case "leave":
		return h.handleLeave(sess, frame.Data)
	case "room_history":
		return h.handleRoomHistory(ctx, sess, frame.Data)
	case "dm_history":
		return h.handleDMHistory(ctx, sess, frame.Data)
	case "reaction_add":
		return h.handleReaction(ctx, sess, frame.Data, true)
	case "reaction_remove":
		return h.handleReaction(ctx, sess, frame.Data, false)
	case "edit":
		return h.handleEdit(ctx, sess, frame.Data)
	case "delete":
		return h.handleDelete(ctx, sess, frame.Data)
	case "pin":
		return h.handlePin(ctx, sess, frame.Data, true)
	case "unpin":
		return h.handlePin(ctx, sess, frame.Data, false)
	case "mark_read":
		return h.handleMarkRead(ctx, sess, frame.Data)
	case "ping":
		sess.Send(mustMarshal(outFrame{Type: "pong"}))
		return nil
	default:
		return apperror.New(apperror.InvalidInput, "unrecognized frame type: "+frame.Type)
	}
}

type roomMessageData struct {
	Room     string `json:"room"`
	Content  string `json:"content"`
	ParentID int64  `json:"parentId"`
}

func (h *Handler) handleRoomMessage(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d roomMessageData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed message data", err)
	}

	if err := permission.Check(sess.Role, permission.SendMessage); err != nil {
		return err
	}

	sanitized, err := contentfilter.Sanitize(d.Content)
	if err != nil {
		return err
	}

	if err := h.rateLimiter.Check(sess.UserID, ratelimit.ActionSendMessage); err != nil {
		return err
	}
	if !h.rooms.IsMember(d.Room, sess.UserID) {
		return apperror.New(apperror.PermissionDenied, "must join the room before sending to it")
	}

	mentions := contentfilter.ExtractMentions(sanitized)

	msg, err := h.store.SendRoomMessage(ctx, d.Room, sess.UserID, sess.Username, sanitized, d.ParentID, mentions)
	if err != nil {
		return err
	}
	h.stats.IncMessage()

	payload := map[string]interface{}{
		"id":       msg.ID,
		"fromUser": msg.AuthorID,
		"username": msg.AuthorUsername,
		"content":  msg.Content,
		"timestamp": msg.CreatedAt,
		"room":     msg.RoomName,
	}
	h.broadcastToRoom(d.Room, outFrame{Type: "message", Data: payload})
	return nil
}

type directMessageData struct {
	To       int64  `json:"to"`
	Content  string `json:"content"`
	ParentID int64  `json:"parentId"`
}

// handleDirectMessage implements the DM-block privacy contract resolved in
// SPEC_FULL.md §4.9: a blocked send reports success to the sender with no
// indication of the block, and is silently not delivered.
func (h *Handler) handleDirectMessage(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d directMessageData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed dm data", err)
	}

	if err := permission.Check(sess.Role, permission.SendDirectMessage); err != nil {
		return err
	}

	sanitized, err := contentfilter.Sanitize(d.Content)
	if err != nil {
		return err
	}

	if err := h.rateLimiter.Check(sess.UserID, ratelimit.ActionSendDM); err != nil {
		return err
	}
	if d.To == sess.UserID {
		return apperror.New(apperror.InvalidInput, "cannot send a direct message to yourself")
	}

	blocked, err := h.store.IsBlocked(ctx, d.To, sess.UserID)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}

	msg, err := h.store.SendDirectMessage(ctx, sess.UserID, sess.Username, d.To, sanitized, d.ParentID)
	if err != nil {
		return err
	}
	h.stats.IncMessage()

	payload := map[string]interface{}{
		"id":        msg.ID,
		"fromUser":  msg.AuthorID,
		"username":  msg.AuthorUsername,
		"content":   msg.Content,
		"timestamp": msg.CreatedAt,
		"toUser":    msg.RecipientID,
	}
	h.sendTo(d.To, outFrame{Type: "dm", Data: payload})
	sess.Send(mustMarshal(outFrame{Type: "dm", Data: payload}))
	return nil
}

type joinData struct {
	Room string `json:"room"`
}

func (h *Handler) handleJoin(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d joinData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed join data", err)
	}

	if err := permission.Check(sess.Role, permission.JoinRoom); err != nil {
		return err
	}

	name, err := contentfilter.ValidateRoomName(d.Room)
	if err != nil {
		return err
	}
	if err := h.rateLimiter.Check(sess.UserID, ratelimit.ActionJoinRoom); err != nil {
		return err
	}

	h.rooms.Join(name, sess.UserID)
	if err := h.presence.Online(ctx, sess.UserID, name); err != nil {
		h.logger.Warn(ctx, "presence update failed on join: user=%d err=%v", sess.UserID, err)
	}

	sess.Send(mustMarshal(outFrame{Type: "join_ack", Data: map[string]interface{}{"room": name}}))
	return nil
}

type leaveData struct {
	Room string `json:"room"`
}

func (h *Handler) handleLeave(sess *session.Session, data json.RawMessage) error {
	var d leaveData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed leave data", err)
	}
	h.rooms.Leave(d.Room, sess.UserID)
	return nil
}

type roomHistoryData struct {
	Room  string `json:"room"`
	Limit int    `json:"limit"`
}

func (h *Handler) handleRoomHistory(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d roomHistoryData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed room_history data", err)
	}
	if err := permission.Check(sess.Role, permission.ViewRoomHistory); err != nil {
		return err
	}
	if !h.rooms.IsMember(d.Room, sess.UserID) {
		return apperror.New(apperror.PermissionDenied, "must join the room before reading its history")
	}

	limit := d.Limit
	if limit == 0 {
		limit = 50
	}

	history, err := h.store.GetRoomHistory(ctx, d.Room, limit, 0, false)
	if err != nil {
		return err
	}
	sess.Send(mustMarshal(outFrame{Type: "room_history", Data: history}))
	return nil
}

type dmHistoryData struct {
	With  int64 `json:"with"`
	Limit int   `json:"limit"`
}

func (h *Handler) handleDMHistory(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d dmHistoryData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed dm_history data", err)
	}
	if err := permission.Check(sess.Role, permission.ViewDirectMessageHistory); err != nil {
		return err
	}

	limit := d.Limit
	if limit == 0 {
		limit = 50
	}

	history, err := h.store.GetDMHistory(ctx, sess.UserID, d.With, limit, 0)
	if err != nil {
		return err
	}
	sess.Send(mustMarshal(outFrame{Type: "dm_history", Data: history}))
	return nil
}

type reactionData struct {
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func (h *Handler) handleReaction(ctx context.Context, sess *session.Session, data json.RawMessage, add bool) error {
	var d reactionData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed reaction data", err)
	}

	tag, err := reaction.Normalize(d.Emoji)
	if err != nil {
		return err
	}

	if add {
		if err := h.store.AddReaction(ctx, d.MessageID, sess.UserID, sess.Username, tag); err != nil {
			return err
		}
	} else {
		if err := h.store.RemoveReaction(ctx, d.MessageID, sess.UserID, tag); err != nil {
			return err
		}
	}

	summary, err := h.store.GetReactions(ctx, d.MessageID)
	if err != nil {
		return err
	}
	h.broadcastAll(outFrame{Type: "reaction_update", Data: summary})
	return nil
}

type editData struct {
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
}

func (h *Handler) handleEdit(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d editData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed edit data", err)
	}

	sanitized, err := contentfilter.Sanitize(d.Content)
	if err != nil {
		return err
	}

	return h.store.EditMessage(ctx, d.MessageID, sess.UserID, sanitized)
}

type deleteData struct {
	MessageID int64 `json:"messageId"`
}

func (h *Handler) handleDelete(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d deleteData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed delete data", err)
	}

	isModerator := permission.Check(sess.Role, permission.Delete) == nil
	return h.store.DeleteMessage(ctx, d.MessageID, sess.UserID, isModerator)
}

type pinData struct {
	MessageID int64  `json:"messageId"`
	Room      string `json:"room"`
}

func (h *Handler) handlePin(ctx context.Context, sess *session.Session, data json.RawMessage, pin bool) error {
	var d pinData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed pin data", err)
	}
	if err := permission.Check(sess.Role, permission.Pin); err != nil {
		return err
	}

	if pin {
		return h.store.PinMessage(ctx, d.MessageID, d.Room, sess.UserID)
	}
	return h.store.UnpinMessage(ctx, d.MessageID, d.Room, sess.UserID)
}

type markReadData struct {
	MessageID int64 `json:"messageId"`
}

func (h *Handler) handleMarkRead(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var d markReadData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperror.Wrap(apperror.InvalidInput, "malformed mark_read data", err)
	}
	return h.store.MarkDMRead(ctx, d.MessageID, sess.UserID)
}

func (h *Handler) broadcastToRoom(room string, frame outFrame) {
	payload := mustMarshal(frame)
	for _, userID := range h.rooms.Members(room) {
		if sess, ok := h.sessions.Get(userID); ok {
			sess.Send(payload)
		}
	}
}

// broadcastAll fans a frame out to every connected session; used by the
// reaction engine per the deliberately coarse broadcast scope of §4.6.
func (h *Handler) broadcastAll(frame outFrame) {
	payload := mustMarshal(frame)
	_, _ = h.sessions.Ping(payload) // reuses the non-blocking send path; failures are not actionable here
}

func (h *Handler) sendTo(userID int64, frame outFrame) {
	if sess, ok := h.sessions.Get(userID); ok {
		sess.Send(mustMarshal(frame))
	}
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","data":{"code":"fatal","message":"failed to encode outbound frame"}}`)
	}
	return data
}
