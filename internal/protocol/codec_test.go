package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_KnownEvents(t *testing.T) {
	req := require.New(t)

	ev, err := DecodeInbound([]byte(`{"event":"join-room","data":{"roomId":"r1"}}`))
	req.NoError(err)
	req.Equal(JoinRoom{RoomID: "r1"}, ev)

	ev, err = DecodeInbound([]byte(`{"event":"leave-room","data":{"roomId":"r1","userId":"u1"}}`))
	req.NoError(err)
	req.Equal(LeaveRoom{RoomID: "r1", UserID: "u1"}, ev)

	ev, err = DecodeInbound([]byte(`{"event":"send-message","data":{"roomId":"r1","message":"hello"}}`))
	req.NoError(err)
	req.Equal(SendMessage{RoomID: "r1", Message: "hello"}, ev)
}

func TestDecodeInbound_RejectsUnknownEvent(t *testing.T) {
	req := require.New(t)
	_, err := DecodeInbound([]byte(`{"event":"shutdown-server","data":{}}`))
	req.Error(err)
}

func TestDecodeInbound_RejectsMalformedFrames(t *testing.T) {
	req := require.New(t)

	_, err := DecodeInbound([]byte(`not json`))
	req.Error(err)

	_, err = DecodeInbound([]byte(`{"event":"join-room","data":"not an object"}`))
	req.Error(err)
}

func TestEncode_WireFieldNames(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(SlowMode{SecondsLeft: 3})
	req.NoError(err)

	var env struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	req.NoError(json.Unmarshal(raw, &env))
	req.Equal("slow-mode", env.Event)
	req.EqualValues(3, env.Data["secondsLeft"])
}

func TestEncode_NewMessageRoundTrip(t *testing.T) {
	req := require.New(t)

	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw, err := Encode(NewMessage{Username: "SwiftFox7", Message: "hello", Time: sent})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(raw, &env))
	req.Equal(EventNewMessage, env.Event)

	var msg NewMessage
	req.NoError(json.Unmarshal(env.Data, &msg))
	req.Equal("SwiftFox7", msg.Username)
	req.Equal("hello", msg.Message)
	req.True(msg.Time.Equal(sent))
}

func TestOutbound_EventNames(t *testing.T) {
	req := require.New(t)

	req.Equal("your-identity", YourIdentity{}.EventName())
	req.Equal("user-joined", UserJoined{}.EventName())
	req.Equal("user-left", UserLeft{}.EventName())
	req.Equal("user-count", UserCount{}.EventName())
	req.Equal("new-message", NewMessage{}.EventName())
	req.Equal("slow-mode", SlowMode{}.EventName())
	req.Equal("room-closing", RoomClosing{}.EventName())
	req.Equal("room-expired", RoomExpired{}.EventName())
	req.Equal("last-user-warning", LastUserWarning{}.EventName())
	req.Equal("message-blocked", MessageBlocked{}.EventName())
	req.Equal("new-room-created", NewRoomCreated{}.EventName())
	req.Equal("user-banned", UserBanned{}.EventName())
}
