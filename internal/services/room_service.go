package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"room-coordinator/internal/broadcast"
	"room-coordinator/internal/config"
	"room-coordinator/internal/database"
	"room-coordinator/internal/models"
	"room-coordinator/internal/room"
	"room-coordinator/pkg/logger"
)

// RoomService backs the REST surface: discovery, user-room CRUD, history.
// Live member counts come from the registry; everything durable from the
// store.
type RoomService struct {
	store       database.Store
	registry    *room.Registry
	broadcaster *broadcast.Broadcaster
	cfg         *config.Config
	validate    *validator.Validate
	now         func() time.Time
}

func NewRoomService(store database.Store, registry *room.Registry,
	broadcaster *broadcast.Broadcaster, cfg *config.Config) *RoomService {
	return &RoomService{
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		cfg:         cfg,
		validate:    validator.New(),
		now:         time.Now,
	}
}

// DiscoverRooms lists system rooms near a location, closest first.
func (s *RoomService) DiscoverRooms(ctx context.Context, lat, lng float64) ([]*models.Room, error) {
	rooms, err := s.store.ListSystemRooms(ctx)
	if err != nil {
		return nil, err
	}
	return s.annotateNearby(rooms, lat, lng), nil
}

// NearbyRooms lists all live rooms, system and user, within the configured
// radius.
func (s *RoomService) NearbyRooms(ctx context.Context, lat, lng float64) ([]*models.Room, error) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		return nil, err
	}
	return s.annotateNearby(rooms, lat, lng), nil
}

func (s *RoomService) annotateNearby(rooms []*models.Room, lat, lng float64) []*models.Room {
	nearby := lo.Filter(rooms, func(rm *models.Room, _ int) bool {
		rm.DistanceKm = distanceKm(lat, lng, rm.Latitude, rm.Longitude)
		rm.ActiveUsers = s.registry.LiveCount(rm.ID)
		return rm.DistanceKm <= s.cfg.Rooms.NearbyRadiusKm
	})
	return nearby
}

// NearbyActiveCount totals live members across nearby rooms.
func (s *RoomService) NearbyActiveCount(ctx context.Context, lat, lng float64) (*models.NearbyCount, error) {
	rooms, err := s.NearbyRooms(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	total := lo.SumBy(rooms, func(rm *models.Room) int { return rm.ActiveUsers })
	return &models.NearbyCount{
		TotalActiveUsers: total,
		Latitude:         lat,
		Longitude:        lng,
	}, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	rm, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found")
	}
	rm.ActiveUsers = s.registry.LiveCount(rm.ID)
	return rm, nil
}

// RoomHistory returns the persisted message stream, oldest first.
func (s *RoomService) RoomHistory(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.RoomHistory(ctx, roomID, limit)
}

// CreateUserRoom creates a user room, enforcing the per-creator slot quota,
// and announces it on the discovery feed.
func (s *RoomService) CreateUserRoom(ctx context.Context, req *models.CreateRoomRequest) (*models.Room, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid room request: %w", err)
	}

	used, err := s.store.CountUserRooms(ctx, req.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to check room slots: %w", err)
	}
	if used >= s.cfg.Rooms.UserRoomSlots {
		return nil, fmt.Errorf("no room slots available (%d of %d used)", used, s.cfg.Rooms.UserRoomSlots)
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.Rooms.UserRoomTTL)
	rm := &models.Room{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Kind:           models.RoomKindUser,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		IsActive:       true,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		ExpiresAt:      &expiresAt,
		LastActivityAt: now,
	}

	if err := s.store.CreateRoom(ctx, rm); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	s.registry.Create(rm)
	s.broadcaster.AnnounceRoom(rm)

	logger.Info("User room %s (%q) created by %s, expires %s",
		rm.ID, rm.Title, rm.CreatedBy, expiresAt.Format(time.RFC3339))
	return rm, nil
}

// UserRooms lists the creator's live rooms.
func (s *RoomService) UserRooms(ctx context.Context, createdBy string) ([]*models.Room, error) {
	rooms, err := s.store.ListUserRooms(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	for _, rm := range rooms {
		rm.ActiveUsers = s.registry.LiveCount(rm.ID)
	}
	return rooms, nil
}

// UserRoomSlots reports the creator's quota usage.
func (s *RoomService) UserRoomSlots(ctx context.Context, createdBy string) (*models.RoomSlots, error) {
	used, err := s.store.CountUserRooms(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	total := s.cfg.Rooms.UserRoomSlots
	return &models.RoomSlots{
		Total:     total,
		Used:      used,
		Available: max(total-used, 0),
	}, nil
}

// Teardown is how expired-room cleanup severs live members; wired to the
// gateway at startup.
type Teardown interface {
	ExpireRoom(roomID, roomName, message string)
}

// CleanupExpired deletes user rooms past their hard deadline and tears
// down any that are still live.
func (s *RoomService) CleanupExpired(ctx context.Context, td Teardown) (int, error) {
	ids, err := s.store.DeleteExpiredRooms(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if liveRoom, ok := s.registry.Get(id); ok {
			td.ExpireRoom(id, liveRoom.Title(), "Room expired")
		}
	}
	if len(ids) > 0 {
		logger.Info("Cleaned up %d expired rooms", len(ids))
	}
	return len(ids), nil
}

// StartCleanupLoop runs CleanupExpired periodically until ctx is done.
func (s *RoomService) StartCleanupLoop(ctx context.Context, td Teardown, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx, td); err != nil {
				logger.Error("Room cleanup failed: %v", err)
			}
		}
	}
}

// distanceKm is the haversine great-circle distance, rounded to 0.1 km.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(earthRadiusKm*c*10) / 10
}

func toRad(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
