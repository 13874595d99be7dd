// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MessageKind classifies a chat event.
type MessageKind string

const (
	// KindText is an ordinary chat message.
	KindText MessageKind = "TEXT"

	// KindJoin announces a user entering a room.
	KindJoin MessageKind = "JOIN"

	// KindLeave announces a user leaving a room.
	KindLeave MessageKind = "LEAVE"
)

var messageKindTypes map[MessageKind]struct{}
var messageKindList []string

func init() {
	list := []MessageKind{
		KindText,
		KindJoin,
		KindLeave,
	}

	messageKindTypes = make(map[MessageKind]struct{})
	for _, k := range list {
		messageKindTypes[k] = struct{}{}
		messageKindList = append(messageKindList, string(k))
	}
}

// validateMessageKind validates the MessageKind enum value.
func validateMessageKind(kind MessageKind) error {
	_, ok := messageKindTypes[kind]
	if ok {
		return nil
	}

	list := strings.Join(messageKindList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("message type '%s' is invalid: must be %s", kind, list))
}

// ChatEvent is the raw payload a client sends over its WebSocket connection.
// It is inbound only; the ingress server maps it into an Envelope before
// anything durable happens.
type ChatEvent struct {
	Username    string      `json:"username"`
	UserID      string      `json:"userId"`
	Message     string      `json:"message"`
	MessageType MessageKind `json:"messageType"`
}

// Validation bounds for inbound chat events.
const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minUserID      = 1
	maxUserID      = 100000
	maxMessageLen  = 500
)

// Validate checks the event against the ingress field rules. Any violation
// returns an error joined with ErrValidation whose message is suitable for
// returning to the client verbatim.
func (e *ChatEvent) Validate() error {
	if e.Username == "" {
		return errors.Join(ErrValidation, fmt.Errorf("username cannot be empty"))
	}
	if n := utf8.RuneCountInString(e.Username); n < minUsernameLen || n > maxUsernameLen {
		return errors.Join(ErrValidation,
			fmt.Errorf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}

	if e.UserID == "" {
		return errors.Join(ErrValidation, fmt.Errorf("userId cannot be empty"))
	}
	id, err := strconv.Atoi(e.UserID)
	if err != nil {
		return errors.Join(ErrValidation, fmt.Errorf("userId must be a number"))
	}
	if id < minUserID || id > maxUserID {
		return errors.Join(ErrValidation,
			fmt.Errorf("userId must be between %d and %d", minUserID, maxUserID))
	}

	if e.Message == "" {
		return errors.Join(ErrValidation, fmt.Errorf("message cannot be empty"))
	}
	if utf8.RuneCountInString(e.Message) > maxMessageLen {
		return errors.Join(ErrValidation,
			fmt.Errorf("message must be between 1 and %d characters", maxMessageLen))
	}

	return validateMessageKind(e.MessageType)
}

// Envelope is the durable, fully-addressed representation of a chat event
// after ingress validation. It is created once at publish time and immutable
// thereafter; MessageID is the deduplication key.
type Envelope struct {
	MessageID   string      `json:"messageId"`
	RoomID      string      `json:"roomId"`
	UserID      string      `json:"userId"`
	Username    string      `json:"username"`
	Message     string      `json:"message"`
	Timestamp   string      `json:"timestamp"`
	MessageType MessageKind `json:"messageType"`

	// ServerID identifies which ingress instance published this message.
	ServerID string `json:"serverId"`

	// ClientIP is the address of the originating client connection.
	ClientIP string `json:"clientIp"`
}

// NewEnvelope wraps a validated client event into a durable envelope with a
// freshly generated identifier and a server-side timestamp.
func NewEnvelope(event *ChatEvent, roomID, serverID, clientIP string) *Envelope {
	return &Envelope{
		MessageID:   uuid.NewString(),
		RoomID:      roomID,
		UserID:      event.UserID,
		Username:    event.Username,
		Message:     event.Message,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		MessageType: event.MessageType,
		ServerID:    serverID,
		ClientIP:    clientIP,
	}
}

// ChatResponse is the structured status reply the ingress server sends back
// over the same connection, for validation and transient-availability errors.
type ChatResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	chatExchange = "chat.exchange"
	roomPrefix   = "room."
)

// roomKey returns the routing key for a room. The per-room queue carries the
// same name, so the room identifier is both the broker queue selector and
// the consumer-ownership key.
func roomKey(roomID string) string {
	return roomPrefix + roomID
}
