package models

import "time"

type RoomKind string

const (
	RoomKindSystem RoomKind = "system"
	RoomKindUser   RoomKind = "user"
)

type Room struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Kind           RoomKind   `json:"type"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	City           string     `json:"city,omitempty"`
	IsActive       bool       `json:"isActive"`
	ActiveUsers    int        `json:"activeUserCount"`
	DistanceKm     float64    `json:"distance,omitempty"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
}

// Expired reports whether the room's hard deadline has passed.
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

type Message struct {
	ID       int64     `json:"id"`
	RoomID   string    `json:"roomId"`
	Username string    `json:"username"`
	Content  string    `json:"message"`
	SentAt   time.Time `json:"time"`
}

type Ban struct {
	UserID   string    `json:"userId"`
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"bannedAt"`
}

type CreateRoomRequest struct {
	Title     string  `json:"title" validate:"required,min=3,max=80"`
	Latitude  float64 `json:"lat" validate:"required,latitude"`
	Longitude float64 `json:"lng" validate:"required,longitude"`
	CreatedBy string  `json:"createdBy" validate:"required"`
}

type RoomSlots struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Available int `json:"available"`
}

type NearbyCount struct {
	TotalActiveUsers int     `json:"totalActiveUsers"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}
