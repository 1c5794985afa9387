package store

import (
	"context"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

// GetModerationLogByRoom returns room's audited moderator actions,
// newest-first, capped at limit.
func (s *Store) GetModerationLogByRoom(ctx context.Context, room string, limit int) ([]models.ModerationLogEntry, error) {
	limit, err := clampHistoryLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, COALESCE(room_name, ''), actor_id, action, COALESCE(notes, ''), created_at
		FROM moderation_log
		WHERE room_name = $1
		ORDER BY created_at DESC LIMIT $2`, room, limit)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query moderation log by room", err)
	}
	return scanModerationLog(rows)
}

// GetModerationLogByMessage returns every audited action taken against
// messageID, oldest-first so callers see the action history in order.
func (s *Store) GetModerationLogByMessage(ctx context.Context, messageID int64) ([]models.ModerationLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, COALESCE(room_name, ''), actor_id, action, COALESCE(notes, ''), created_at
		FROM moderation_log
		WHERE message_id = $1
		ORDER BY created_at ASC`, messageID)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query moderation log by message", err)
	}
	return scanModerationLog(rows)
}

func scanModerationLog(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close()
}) ([]models.ModerationLogEntry, error) {
	defer rows.Close()

	var out []models.ModerationLogEntry
	for rows.Next() {
		var e models.ModerationLogEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.RoomName, &e.ActorID, &e.Action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan moderation log row", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ArchiveDeletedMessages hard-deletes soft-deleted messages past the
// retention window and reports how many rows were removed.
func (s *Store) ArchiveDeletedMessages(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE status = 'deleted' AND updated_at < now() - $1 * interval '1 second'`,
		olderThan.Seconds())
	if err != nil {
		return 0, apperror.Wrap(apperror.Transient, "failed to archive deleted messages", err)
	}
	return tag.RowsAffected(), nil
}

// FlagMessage marks messageID flagged for moderator review and audits it.
// The C1 content filter does not call it: content it objects to is rejected
// outright.
func (s *Store) FlagMessage(ctx context.Context, messageID, actorID int64, notes string) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET is_flagged = true, moderation_notes = $2 WHERE id = $1`, messageID, notes)
	if err != nil {
		return apperror.Wrap(apperror.Transient, "failed to flag message", err)
	}
	return s.writeModerationLog(ctx, messageID, "", actorID, models.ModerationFlag, notes)
}
