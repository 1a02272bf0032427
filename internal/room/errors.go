package room

import (
	"errors"
	"strings"
)

var (
	ErrRoomNotFound   = errors.New("room not found or expired")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosing    = errors.New("room is closing")
	ErrNotInRoom      = errors.New("not a member of this room")
	ErrMessageEmpty   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// ValidateMessage trims the text and checks the length bounds. maxLen <= 0
// disables the upper bound.
func ValidateMessage(text string, maxLen int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrMessageEmpty
	}
	if maxLen > 0 && len(text) > maxLen {
		return "", ErrMessageTooLong
	}
	return text, nil
}
