package server

import (
	"net/http"
	"time"

	"github.com/filingline/chat-relay/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every client-to-server event. Exactly
// one of the event fields is set.
type ClientMessage struct {
	BaseMessage
	Join    *JoinOrderRoom  `json:"join_order_room,omitempty"`
	Leave   *LeaveOrderRoom `json:"leave_order_room,omitempty"`
	Publish *SendMessage    `json:"send_message,omitempty"`
	UserId  int             `json:"-"`
	client  *Client         `json:"-"`
}

type JoinOrderRoom struct {
	OrderId string `json:"order_id"`
}

type LeaveOrderRoom struct {
	OrderId string `json:"order_id"`
}

type SendMessage struct {
	OrderId      string             `json:"order_id"`
	MessageText  string             `json:"message_text,omitempty"`
	Attachments  []types.Attachment `json:"attachments,omitempty"`
	FromAdminApp bool               `json:"from_admin_app"`
}

// ServerMessage is the envelope for every server-to-client event. Response
// is an ack correlated to the client message id; the other fields are room
// broadcasts.
type ServerMessage struct {
	BaseMessage
	Response         *Response         `json:"response,omitempty"`
	NewMessage       *MessageEvent     `json:"new_message,omitempty"`
	MessageUpdated   *MessageEvent     `json:"message_updated,omitempty"`
	DashboardRefresh *DashboardRefresh `json:"dashboard_refresh,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type MessageEvent struct {
	OrderId string        `json:"order_id"`
	Message types.Message `json:"message"`
}

// DashboardRefresh carries no payload; admin consoles re-fetch summary
// data themselves.
type DashboardRefresh struct{}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

// ErrUnauthorized is returned for both missing orders and ownership
// failures so callers cannot probe which orders exist.
func ErrUnauthorized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "unauthorized",
		},
	}
}

func ErrEmptyMessage(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "message text or attachments required",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
