package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"room-coordinator/internal/models"
	"room-coordinator/pkg/logger"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (db *PostgresStore) Close() error {
	db.pool.Close()
	return nil
}

// Room Store Implementation

func (db *PostgresStore) CreateRoom(ctx context.Context, rm *models.Room) error {
	query := `
		INSERT INTO rooms (id, title, kind, latitude, longitude, city, is_active, created_by, created_at, expires_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := db.pool.Exec(ctx, query,
		rm.ID, rm.Title, rm.Kind, rm.Latitude, rm.Longitude, rm.City,
		rm.IsActive, rm.CreatedBy, rm.CreatedAt, rm.ExpiresAt, rm.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (db *PostgresStore) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	query := `
		SELECT id, title, kind, latitude, longitude, city, is_active, created_by, created_at, expires_at, last_activity_at
		FROM rooms WHERE id = $1`

	rm := &models.Room{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&rm.ID, &rm.Title, &rm.Kind, &rm.Latitude, &rm.Longitude, &rm.City,
		&rm.IsActive, &rm.CreatedBy, &rm.CreatedAt, &rm.ExpiresAt, &rm.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	return rm, nil
}

func (db *PostgresStore) ListSystemRooms(ctx context.Context) ([]*models.Room, error) {
	query := `
		SELECT id, title, kind, latitude, longitude, city, is_active, created_by, created_at, expires_at, last_activity_at
		FROM rooms WHERE kind = 'system' AND is_active = true
		ORDER BY title`

	return db.queryRooms(ctx, query)
}

func (db *PostgresStore) ListActiveRooms(ctx context.Context) ([]*models.Room, error) {
	query := `
		SELECT id, title, kind, latitude, longitude, city, is_active, created_by, created_at, expires_at, last_activity_at
		FROM rooms
		WHERE is_active = true AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC`

	return db.queryRooms(ctx, query)
}

func (db *PostgresStore) queryRooms(ctx context.Context, query string, args ...any) ([]*models.Room, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		rm := &models.Room{}
		if err := rows.Scan(
			&rm.ID, &rm.Title, &rm.Kind, &rm.Latitude, &rm.Longitude, &rm.City,
			&rm.IsActive, &rm.CreatedBy, &rm.CreatedAt, &rm.ExpiresAt, &rm.LastActivityAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

func (db *PostgresStore) ListUserRooms(ctx context.Context, createdBy string) ([]*models.Room, error) {
	query := `
		SELECT id, title, kind, latitude, longitude, city, is_active, created_by, created_at, expires_at, last_activity_at
		FROM rooms
		WHERE kind = 'user' AND created_by = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC`

	return db.queryRooms(ctx, query, createdBy)
}

func (db *PostgresStore) CountUserRooms(ctx context.Context, createdBy string) (int, error) {
	query := `
		SELECT COUNT(*) FROM rooms
		WHERE kind = 'user' AND created_by = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > NOW())`

	var count int
	err := db.pool.QueryRow(ctx, query, createdBy).Scan(&count)
	return count, err
}

func (db *PostgresStore) TouchRoom(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE rooms SET last_activity_at = $2 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, at)
	return err
}

func (db *PostgresStore) DeleteRoom(ctx context.Context, id string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM messages WHERE room_id = $1", id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM rooms WHERE id = $1", id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *PostgresStore) DeleteExpiredRooms(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		DELETE FROM rooms
		WHERE kind = 'user' AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING id`

	rows, err := db.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Message Store Implementation

func (db *PostgresStore) SaveMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error {
	query := `INSERT INTO messages (room_id, username, content, sent_at) VALUES ($1, $2, $3, $4)`
	_, err := db.pool.Exec(ctx, query, roomID, username, content, sentAt)
	return err
}

func (db *PostgresStore) RoomHistory(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, room_id, username, content, sent_at
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Username, &msg.Content, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Ban Store Implementation

func (db *PostgresStore) GetBan(ctx context.Context, userID string) (*models.Ban, error) {
	query := `SELECT user_id, reason, banned_at FROM bans WHERE user_id = $1`

	ban := &models.Ban{}
	err := db.pool.QueryRow(ctx, query, userID).Scan(&ban.UserID, &ban.Reason, &ban.BannedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ban, nil
}
