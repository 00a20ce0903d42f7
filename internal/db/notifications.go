package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"stock-alert-service/internal/models"
)

// NotificationLog stores delivery attempts.
type NotificationLog struct {
	db *DB
}

func NewNotificationLog(d *DB) *NotificationLog {
	return &NotificationLog{db: d}
}

func (n *NotificationLog) Record(ctx context.Context, rec models.Notification) error {
	if rec.EventIDs == nil {
		rec.EventIDs = []uuid.UUID{}
	}
	query := `
	INSERT INTO notifications (
		id, channel, recipient, subject, body, event_ids, digest, status, last_error, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := n.db.Pool.Exec(ctx, query,
		rec.ID,
		rec.Channel,
		rec.Recipient,
		rec.Subject,
		rec.Body,
		rec.EventIDs,
		rec.Digest,
		rec.Status,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns matching records newest first.
func (n *NotificationLog) List(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Channel != "" {
		args = append(args, f.Channel)
		conds = append(conds, fmt.Sprintf("channel = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `
	SELECT id, channel, recipient, subject, body, event_ids, digest, status, last_error, created_at
	FROM notifications`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := n.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	list := make([]models.Notification, 0)
	for rows.Next() {
		var rec models.Notification
		err := rows.Scan(
			&rec.ID,
			&rec.Channel,
			&rec.Recipient,
			&rec.Subject,
			&rec.Body,
			&rec.EventIDs,
			&rec.Digest,
			&rec.Status,
			&rec.Error,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return list, nil
}
