package store

import (
	"context"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

const (
	topRoomsLimit       = 10
	topActiveUsersLimit = 10
	topActiveUsersWindowDays = 30
)

// GetMessageStats computes the Message Analytics snapshot (C15): overall
// and per-kind totals, today/this-week counts, and the top 10 rooms by
// volume plus top 10 active users over the trailing 30 days.
func (s *Store) GetMessageStats(ctx context.Context) (models.MessageStats, error) {
	var stats models.MessageStats

	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE kind = 'room'),
			COUNT(*) FILTER (WHERE kind = 'direct'),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('week', now()))
		FROM messages
		WHERE status != 'deleted'`)
	if err := row.Scan(&stats.TotalMessages, &stats.RoomMessages, &stats.DirectMessages, &stats.MessagesToday, &stats.MessagesThisWeek); err != nil {
		return models.MessageStats{}, apperror.Wrap(apperror.Transient, "failed to query message totals", err)
	}

	topRooms, err := s.getTopRooms(ctx)
	if err != nil {
		return models.MessageStats{}, err
	}
	stats.TopRooms = topRooms

	topUsers, err := s.getTopActiveUsers(ctx)
	if err != nil {
		return models.MessageStats{}, err
	}
	stats.TopActiveUsers = topUsers

	return stats, nil
}

func (s *Store) getTopRooms(ctx context.Context) ([]models.TopRoom, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_name, COUNT(*) AS message_count
		FROM messages
		WHERE kind = 'room' AND status != 'deleted'
		GROUP BY room_name
		ORDER BY message_count DESC
		LIMIT $1`, topRoomsLimit)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query top rooms", err)
	}
	defer rows.Close()

	var out []models.TopRoom
	for rows.Next() {
		var r models.TopRoom
		if err := rows.Scan(&r.RoomName, &r.Count); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan top room row", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) getTopActiveUsers(ctx context.Context) ([]models.TopUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT author_id, COUNT(*) AS message_count
		FROM messages
		WHERE status != 'deleted' AND created_at >= now() - ($1 || ' days')::interval
		GROUP BY author_id
		ORDER BY message_count DESC
		LIMIT $2`, topActiveUsersWindowDays, topActiveUsersLimit)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transient, "failed to query top active users", err)
	}
	defer rows.Close()

	var out []models.TopUser
	for rows.Next() {
		var u models.TopUser
		if err := rows.Scan(&u.UserID, &u.Count); err != nil {
			return nil, apperror.Wrap(apperror.Transient, "failed to scan top user row", err)
		}
		out = append(out, u)
	}
	return out, nil
}
