package protocol

import "time"

// Inbound is the closed set of client-to-coordinator events. The gateway
// switches exhaustively over these; a new event is a compile-time change.
type Inbound interface {
	isInbound()
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SendMessage struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (JoinRoom) isInbound()    {}
func (LeaveRoom) isInbound()   {}
func (SendMessage) isInbound() {}

// Outbound is the closed set of coordinator-to-client events. Each variant
// carries its wire name; payload field names match what the client reads.
type Outbound interface {
	EventName() string
}

// YourIdentity is sent once to the joining connection only.
type YourIdentity struct {
	Username string `json:"username"`
}

// UserJoined is sent to all members except the one that joined.
type UserJoined struct {
	Username string `json:"username"`
}

type UserLeft struct {
	Username string `json:"username"`
}

// UserCount is sent to all members after any membership change.
type UserCount struct {
	Count int `json:"count"`
}

// NewMessage is sent to all members, sender included; clients render from
// this stream rather than echoing locally.
type NewMessage struct {
	Username string    `json:"username"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// SlowMode is sent to the rate-limited sender only.
type SlowMode struct {
	SecondsLeft int `json:"secondsLeft"`
}

// RoomClosing is terminal; sent before the member is severed.
type RoomClosing struct {
	Message string `json:"message"`
}

// RoomExpired is terminal; sent before the member is severed on timeout.
type RoomExpired struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	Message  string `json:"message"`
}

type LastUserWarning struct {
	Message string `json:"message"`
}

// MessageBlocked relays a moderation verdict to the sender only.
type MessageBlocked struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// NewRoomCreated goes to the geographic discovery feed, not room members.
type NewRoomCreated struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	CreatedBy string     `json:"createdBy"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UserBanned relays a ban verdict; the connection is closed right after.
type UserBanned struct {
	Message   string    `json:"message"`
	BanReason string    `json:"banReason"`
	BannedAt  time.Time `json:"bannedAt"`
}

const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"

	EventYourIdentity    = "your-identity"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUserCount       = "user-count"
	EventNewMessage      = "new-message"
	EventSlowMode        = "slow-mode"
	EventRoomClosing     = "room-closing"
	EventRoomExpired     = "room-expired"
	EventLastUserWarning = "last-user-warning"
	EventMessageBlocked  = "message-blocked"
	EventNewRoomCreated  = "new-room-created"
	EventUserBanned      = "user-banned"
)

func (YourIdentity) EventName() string    { return EventYourIdentity }
func (UserJoined) EventName() string      { return EventUserJoined }
func (UserLeft) EventName() string        { return EventUserLeft }
func (UserCount) EventName() string       { return EventUserCount }
func (NewMessage) EventName() string      { return EventNewMessage }
func (SlowMode) EventName() string        { return EventSlowMode }
func (RoomClosing) EventName() string     { return EventRoomClosing }
func (RoomExpired) EventName() string     { return EventRoomExpired }
func (LastUserWarning) EventName() string { return EventLastUserWarning }
func (MessageBlocked) EventName() string  { return EventMessageBlocked }
func (NewRoomCreated) EventName() string  { return EventNewRoomCreated }
func (UserBanned) EventName() string      { return EventUserBanned }
