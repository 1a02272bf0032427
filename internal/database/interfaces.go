package database

import (
	"context"
	"time"

	"room-coordinator/internal/models"
)

type RoomStore interface {
	CreateRoom(ctx context.Context, rm *models.Room) error
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	ListSystemRooms(ctx context.Context) ([]*models.Room, error)
	ListActiveRooms(ctx context.Context) ([]*models.Room, error)
	ListUserRooms(ctx context.Context, createdBy string) ([]*models.Room, error)
	CountUserRooms(ctx context.Context, createdBy string) (int, error)
	TouchRoom(ctx context.Context, id string, at time.Time) error
	DeleteRoom(ctx context.Context, id string) error
	DeleteExpiredRooms(ctx context.Context, now time.Time) ([]string, error)
}

type MessageStore interface {
	SaveMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error
	RoomHistory(ctx context.Context, roomID string, limit int) ([]*models.Message, error)
}

type BanStore interface {
	GetBan(ctx context.Context, userID string) (*models.Ban, error)
}

type Store interface {
	RoomStore
	MessageStore
	BanStore
	Close() error
}
