package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/models"
)

// Repository persists notification rows and resolves user contact details.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateNotification appends one notification row.
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, ride_id, type, title, body, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.RideID,
		n.Type,
		n.Title,
		n.Body,
		n.Data,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
		SELECT id, user_id, ride_id, type, title, body, data, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.RideID, &n.Type, &n.Title, &n.Body, &n.Data, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// ListDeviceTokens returns the push tokens registered for a user.
func (r *Repository) ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RegisterDeviceToken upserts a push token for a user.
func (r *Repository) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO NOTHING
	`, userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// GetUserPhone resolves a phone number for SMS delivery, checking riders
// then drivers. Returns empty without error when the user is unknown.
func (r *Repository) GetUserPhone(ctx context.Context, userID uuid.UUID) (string, error) {
	var phone string
	err := r.db.QueryRow(ctx, `SELECT phone FROM riders WHERE id = $1`, userID).Scan(&phone)
	if err == nil {
		return phone, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to resolve phone: %w", err)
	}

	err = r.db.QueryRow(ctx, `SELECT phone FROM drivers WHERE id = $1`, userID).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve phone: %w", err)
	}
	return phone, nil
}
