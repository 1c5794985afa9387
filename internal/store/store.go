// Package store implements the Message Store (C5), Reaction Engine (C6),
// Moderation Log (C12) and Message Analytics (C15) against the unified
// messages schema. Grounded on original_source/src/message_store.rs,
// src/hub/room.rs, src/hub/dm.rs and src/reactions.rs; SQL idioms (RETURNING
// clauses, OTel-wrapped pool access) grounded on 0DukePan's
// internal/db/queries.go.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

const (
	minHistoryLimit = 1
	maxHistoryLimit = 500
	maxPinnedPerRoom = 10
)

// Pool is the subset of *db.Database the store depends on, kept narrow so
// it can be faked in tests without a live Postgres instance.
type Pool interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
}

// Store is the Postgres-backed Message Store.
type Store struct {
	pool Pool
}

func New(pool Pool) *Store {
	return &Store{pool: pool}
}

func clampHistoryLimit(limit int) (int, error) {
	if limit < minHistoryLimit || limit > maxHistoryLimit {
		return 0, apperror.New(apperror.InvalidInput, "limit must be between 1 and 500")
	}
	return limit, nil
}

// SendRoomMessage appends a room message, its mention rows, and bumps the
// parent's thread-count when parentID is set, then returns the hydrated
// message. Persistence completes before the caller may fan out (§4.5).
func (s *Store) SendRoomMessage(ctx context.Context, room string, authorID int64, authorUsername, content string, parentID int64, mentions []int64) (models.Message, error) {
	var id int64
	var createdAt time.Time

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (kind, room_name, author_id, author_username, content, parent_id, status)
		VALUES ('room', $1, $2, $3, $4, NULLIF($5, 0), 'sent')
		RETURNING id, created_at`,
		room, authorID, authorUsername, content, parentID)
	if err := row.Scan(&id, &createdAt); err != nil {
		return models.Message{}, apperror.Wrap(apperror.Transient, "failed to insert room message", err)
	}

	for _, mentionedID := range mentions {
		if _, err := s.pool.Exec(ctx, `INSERT INTO message_mentions (message_id, mentioned_user_id) VALUES ($1, $2)`, id, mentionedID); err != nil {
			return models.Message{}, apperror.Wrap(apperror.Transient, "failed to insert mention", err)
		}
	}

	if parentID != 0 {
		if _, err := s.pool.Exec(ctx, `UPDATE messages SET thread_count = thread_count + 1 WHERE id = $1`, parentID); err != nil {
			return models.Message{}, apperror.Wrap(apperror.Transient, "failed to bump thread count", err)
		}
	}

	return models.Message{
		ID:             id,
		Kind:           models.MessageKindRoom,
		Content:        content,
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
		RoomName:       room,
		ParentID:       parentID,
		CreatedAt:      createdAt,
		Status:         models.StatusSent,
		Mentions:       mentions,
	}, nil
}

// SendDirectMessage appends a direct message unless the recipient has
// blocked the author, in which case it returns PermissionDenied without
// inserting a row (see DESIGN.md for why the handler-layer silent-success
// variant is preferred on the hot path; this store-level rejection still
// exists so any other caller, e.g. a REST backfill, fails loud rather than
// silently dropping data it never offered a privacy contract for).
func (s *Store) SendDirectMessage(ctx context.Context, authorID int64, authorUsername string, recipientID int64, content string, parentID int64) (models.Message, error) {
	blocked, err := s.IsBlocked(ctx, recipientID, authorID)
	if err != nil {
		return models.Message{}, err
	}
	if blocked {
		return models.Message{}, apperror.New(apperror.PermissionDenied, "recipient has blocked the author")
	}

	var id int64
	var createdAt time.Time
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (kind, recipient_id, author_id, author_username, content, parent_id, status)
		VALUES ('direct', $1, $2, $3, $4, NULLIF($5, 0), 'sent')
		RETURNING id, created_at`,
		recipientID, authorID, authorUsername, content, parentID)
	if err := row.Scan(&id, &createdAt); err != nil {
		return models.Message{}, apperror.Wrap(apperror.Transient, "failed to insert direct message", err)
	}

	if parentID != 0 {
		if _, err := s.pool.Exec(ctx, `UPDATE messages SET thread_count = thread_count + 1 WHERE id = $1`, parentID); err != nil {
			return models.Message{}, apperror.Wrap(apperror.Transient, "failed to bump thread count", err)
		}
	}

	return models.Message{
		ID:             id,
		Kind:           models.MessageKindDirect,
		Content:        content,
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
		RecipientID:    recipientID,
		ParentID:       parentID,
		CreatedAt:      createdAt,
		Status:         models.StatusSent,
	}, nil
}

// GetRoomHistory returns room's messages newest-first, excluding deleted
// rows and, when includeThreads is false, thread replies.
func (s *Store) GetRoomHistory(ctx context.Context, room string, limit int, beforeID int64, includeThreads bool) ([]models.Message, error) {
	limit, err := clampHistoryLimit(limit)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, author_id, author_username, content, parent_id, created_at, updated_at,
			status, is_pinned, is_edited, COALESCE(original_content, ''), thread_count
		FROM messages
		WHERE room_name = $1 AND status != 'deleted'`
	args := []interface{}{room}

	if !includeThreads {
		query += ` AND parent_id IS NULL`
	}
	if beforeID > 0 {
		query += ` AND id < $2`
		args = append(args, beforeID)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + placeholderForLimit(len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query room history", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var parentID *int64
		var updatedAt *time.Time
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorUsername, &m.Content, &parentID, &m.CreatedAt, &updatedAt,
			&m.Status, &m.IsPinned, &m.IsEdited, &m.OriginalContent, &m.ThreadCount); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan room history row", err)
		}
		if parentID != nil {
			m.ParentID = *parentID
		}
		m.UpdatedAt = updatedAt
		m.Kind = models.MessageKindRoom
		m.RoomName = room
		out = append(out, m)
	}
	return out, nil
}

// GetMessageByID hydrates a single message with its mentions and reactions
// (§4.5's hydration contract), across both room and direct messages.
func (s *Store) GetMessageByID(ctx context.Context, id int64) (models.Message, error) {
	var m models.Message
	var parentID *int64
	var updatedAt *time.Time
	var recipientID *int64

	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, author_id, author_username, COALESCE(room_name, ''), recipient_id,
			content, parent_id, created_at, updated_at, status, is_pinned, is_edited,
			COALESCE(original_content, ''), thread_count
		FROM messages
		WHERE id = $1 AND status != 'deleted'`, id)
	if err := row.Scan(&m.ID, &m.Kind, &m.AuthorID, &m.AuthorUsername, &m.RoomName, &recipientID,
		&m.Content, &parentID, &m.CreatedAt, &updatedAt, &m.Status, &m.IsPinned, &m.IsEdited,
		&m.OriginalContent, &m.ThreadCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, apperror.New(apperror.NotFound, "message not found")
		}
		return models.Message{}, apperror.Wrap(apperror.Transient, "failed to query message", err)
	}
	if parentID != nil {
		m.ParentID = *parentID
	}
	if recipientID != nil {
		m.RecipientID = *recipientID
	}
	m.UpdatedAt = updatedAt

	mentionRows, err := s.pool.Query(ctx, `SELECT mentioned_user_id FROM message_mentions WHERE message_id = $1`, id)
	if err != nil {
		return models.Message{}, apperror.Wrap(apperror.Transient, "failed to query mentions", err)
	}
	defer mentionRows.Close()
	for mentionRows.Next() {
		var mentionedID int64
		if err := mentionRows.Scan(&mentionedID); err != nil {
			return models.Message{}, apperror.Wrap(apperror.Transient, "failed to scan mention row", err)
		}
		m.Mentions = append(m.Mentions, mentionedID)
	}

	summary, err := s.GetReactions(ctx, id)
	if err != nil {
		return models.Message{}, err
	}
	if summary.TotalCount > 0 {
		m.Reactions = make(map[string][]int64, len(summary.Reactions))
		for tag, users := range summary.Reactions {
			ids := make([]int64, len(users))
			for i, u := range users {
				ids[i] = u.UserID
			}
			m.Reactions[tag] = ids
		}
	}

	return m, nil
}

// placeholderForLimit returns a literal "$N" positional placeholder; kept as
// a tiny helper rather than fmt.Sprintf at every call site.
func placeholderForLimit(n int) string {
	return "$" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// GetDMHistory returns the merged bidirectional timeline between userA and
// userB, excluding deleted rows.
func (s *Store) GetDMHistory(ctx context.Context, userA, userB int64, limit int, beforeID int64) ([]models.Message, error) {
	limit, err := clampHistoryLimit(limit)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, author_id, author_username, recipient_id, content, parent_id, created_at, updated_at,
			status, is_edited, COALESCE(original_content, '')
		FROM messages
		WHERE kind = 'direct' AND status != 'deleted'
			AND ((author_id = $1 AND recipient_id = $2) OR (author_id = $2 AND recipient_id = $1))`
	args := []interface{}{userA, userB}
	if beforeID > 0 {
		query += ` AND id < $3`
		args = append(args, beforeID)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + placeholderForLimit(len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query dm history", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var parentID *int64
		var updatedAt *time.Time
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorUsername, &m.RecipientID, &m.Content, &parentID, &m.CreatedAt, &updatedAt,
			&m.Status, &m.IsEdited, &m.OriginalContent); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan dm history row", err)
		}
		if parentID != nil {
			m.ParentID = *parentID
		}
		m.UpdatedAt = updatedAt
		m.Kind = models.MessageKindDirect
		out = append(out, m)
	}
	return out, nil
}

// GetDMConversations returns per-counterpart inbox summaries for user.
func (s *Store) GetDMConversations(ctx context.Context, user int64) ([]models.DMConversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			CASE WHEN author_id = $1 THEN recipient_id ELSE author_id END AS other_user_id,
			MAX(created_at) AS last_message_at,
			COUNT(*) FILTER (WHERE recipient_id = $1 AND status != 'read') AS unread_count
		FROM messages
		WHERE kind = 'direct' AND status != 'deleted' AND (author_id = $1 OR recipient_id = $1)
		GROUP BY other_user_id
		ORDER BY last_message_at DESC`, user)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query dm conversations", err)
	}
	defer rows.Close()

	var out []models.DMConversation
	for rows.Next() {
		var c models.DMConversation
		if err := rows.Scan(&c.OtherUserID, &c.LastMessageAt, &c.UnreadCount); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan dm conversation row", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// EditMessage rewrites a message's content; only the author may edit. The
// pre-edit content is snapshotted into original_content on the first edit
// only.
func (s *Store) EditMessage(ctx context.Context, messageID, editorID int64, newContent string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET content = $1,
			original_content = COALESCE(original_content, content),
			is_edited = true,
			updated_at = now()
		WHERE id = $2 AND author_id = $3 AND status != 'deleted'`,
		newContent, messageID, editorID)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to edit message", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.PermissionDenied, "only the author may edit this message")
	}
	return nil
}

// DeleteMessage soft-deletes a message; author or moderator only.
func (s *Store) DeleteMessage(ctx context.Context, messageID, actorID int64, isModerator bool) error {
	query := `UPDATE messages SET status = 'deleted', updated_at = now() WHERE id = $1 AND status != 'deleted'`
	args := []interface{}{messageID}
	if !isModerator {
		query += ` AND author_id = $2`
		args = append(args, actorID)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to delete message", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.NotFound, "message not found or not authored by actor")
	}

	if isModerator {
		if err := s.writeModerationLog(ctx, messageID, "", actorID, models.ModerationDelete, ""); err != nil {
			return err
		}
	}
	return nil
}

// MarkDMRead marks messageID read; only the recipient may do so.
func (s *Store) MarkDMRead(ctx context.Context, messageID, recipientID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET status = 'read', updated_at = now()
		WHERE id = $1 AND kind = 'direct' AND recipient_id = $2 AND status != 'deleted'`,
		messageID, recipientID)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to mark message read", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.PermissionDenied, "only the recipient may mark a message read")
	}
	return nil
}

// SearchMessages performs a case-insensitive substring search, restricted to
// room when set, else every room message plus DMs where user is a party.
func (s *Store) SearchMessages(ctx context.Context, query string, user int64, room string, limit int) ([]models.Message, error) {
	limit, err := clampHistoryLimit(limit)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	pattern := "%" + query + "%"

	if room != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, author_id, author_username, content, created_at, room_name
			FROM messages
			WHERE kind = 'room' AND room_name = $1 AND status != 'deleted' AND content ILIKE $2
			ORDER BY created_at DESC LIMIT $3`, room, pattern, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, author_id, author_username, content, created_at, COALESCE(room_name, '')
			FROM messages
			WHERE status != 'deleted' AND content ILIKE $2
				AND (kind = 'room' OR author_id = $1 OR recipient_id = $1)
			ORDER BY created_at DESC LIMIT $3`, user, pattern, limit)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to search messages", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorUsername, &m.Content, &m.CreatedAt, &m.RoomName); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan search result row", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// IsBlocked reports whether blocker has blocked blocked.
func (s *Store) IsBlocked(ctx context.Context, blocker, blocked int64) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2)`, blocker, blocked)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperror.Wrap(apperror.Transient, "failed to check block state", err)
	}
	return exists, nil
}

func (s *Store) writeModerationLog(ctx context.Context, messageID int64, room string, actorID int64, action models.ModerationAction, notes string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO moderation_log (message_id, room_name, actor_id, action, notes)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''))`,
		messageID, room, actorID, action, notes)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to write moderation log entry", err)
	}
	return nil
}
