package store

import (
	"context"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

// AddReaction records userID's reaction to messageID under the already
// normalized tag, rejecting a duplicate (message, user, tag) triple.
func (s *Store) AddReaction(ctx context.Context, messageID, userID int64, username, tag string) error {
	var messageExists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1 AND status != 'deleted')`, messageID)
	if err := row.Scan(&messageExists); err != nil {
		return apperror.Wrap(apperror.Transient, "failed to check message existence", err)
	}
	if !messageExists {
		return apperror.New(apperror.NotFound, "message not found")
	}

	var exists bool
	row = s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND tag = $3)`,
		messageID, userID, tag)
	if err := row.Scan(&exists); err != nil {
		return apperror.Wrap(apperror.Transient, "failed to check existing reaction", err)
	}
	if exists {
		return apperror.New(apperror.Conflict, "reaction already recorded")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, username, tag)
		VALUES ($1, $2, $3, $4)`,
		messageID, userID, username, tag)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to insert reaction", err)
	}
	return nil
}

// RemoveReaction deletes userID's reaction of tag from messageID.
func (s *Store) RemoveReaction(ctx context.Context, messageID, userID int64, tag string) error {
	tagCmd, err := s.pool.Exec(ctx, `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND tag = $3`,
		messageID, userID, tag)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to remove reaction", err)
	}
	if tagCmd.RowsAffected() == 0 {
		return apperror.New(apperror.NotFound, "reaction not found")
	}
	return nil
}

// GetReactions hydrates every reaction on messageID into the wire summary
// shape, each tag's users listed in insertion order. Tags are map keys, so
// the summary carries no order between tags.
func (s *Store) GetReactions(ctx context.Context, messageID int64) (models.ReactionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tag, user_id, username
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY tag, created_at ASC`, messageID)
	if err != nil {
		return models.ReactionSummary{}, apperror.Wrap(apperror.Transient, "failed to query reactions", err)
	}
	defer rows.Close()

	summary := models.ReactionSummary{
		MessageID: messageID,
		Reactions: make(map[string][]models.ReactionUser),
	}
	for rows.Next() {
		var tag string
		var u models.ReactionUser
		if err := rows.Scan(&tag, &u.UserID, &u.Username); err != nil {
			return models.ReactionSummary{}, apperror.Wrap(apperror.Transient, "failed to scan reaction row", err)
		}
		summary.Reactions[tag] = append(summary.Reactions[tag], u)
		summary.TotalCount++
	}
	return summary, nil
}

// PinMessage pins messageID in room, rejecting a pin once the room already
// holds maxPinnedPerRoom pinned messages, and audits the action.
func (s *Store) PinMessage(ctx context.Context, messageID int64, room string, actorID int64) error {
	var pinnedCount int
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE room_name = $1 AND is_pinned = true`, room)
	if err := row.Scan(&pinnedCount); err != nil {
		return apperror.Wrap(apperror.Transient, "failed to count pinned messages", err)
	}
	if pinnedCount >= maxPinnedPerRoom {
		return apperror.New(apperror.Conflict, "room already has the maximum number of pinned messages")
	}

	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_pinned = true WHERE id = $1 AND room_name = $2 AND status != 'deleted'`,
		messageID, room)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to pin message", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.NotFound, "message not found in room")
	}

	return s.writeModerationLog(ctx, messageID, room, actorID, models.ModerationPin, "")
}

// UnpinMessage clears messageID's pinned flag and audits the action.
func (s *Store) UnpinMessage(ctx context.Context, messageID int64, room string, actorID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_pinned = false WHERE id = $1 AND room_name = $2`, messageID, room)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to unpin message", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.NotFound, "message not found in room")
	}
	return s.writeModerationLog(ctx, messageID, room, actorID, models.ModerationUnpin, "")
}

// GetPinnedMessages returns room's pinned messages, newest-first.
func (s *Store) GetPinnedMessages(ctx context.Context, room string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, author_id, author_username, content, created_at
		FROM messages
		WHERE room_name = $1 AND is_pinned = true AND status != 'deleted'
		ORDER BY created_at DESC`, room)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query pinned messages", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorUsername, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan pinned message row", err)
		}
		m.Kind = models.MessageKindRoom
		m.RoomName = room
		m.IsPinned = true
		out = append(out, m)
	}
	return out, nil
}
