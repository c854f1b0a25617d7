package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseHelpers(t *testing.T) {
	t.Run("NoErrOK", func(t *testing.T) {
		msg := NoErrOK(1, map[string]any{"order_id": "ORD-1"})
		assert.Equal(t, 1, msg.Id)
		assert.Equal(t, http.StatusOK, msg.Response.ResponseCode)
		assert.Empty(t, msg.Response.Error)
		assert.NotNil(t, msg.Response.Data)
	})

	t.Run("NoErrAccepted", func(t *testing.T) {
		msg := NoErrAccepted(2)
		assert.Equal(t, http.StatusAccepted, msg.Response.ResponseCode)
		assert.Empty(t, msg.Response.Error)
	})

	t.Run("ErrUnauthorized", func(t *testing.T) {
		msg := ErrUnauthorized(3)
		assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode)
		assert.Equal(t, "unauthorized", msg.Response.Error)
	})

	t.Run("ErrEmptyMessage", func(t *testing.T) {
		msg := ErrEmptyMessage(4)
		assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode)
	})

	t.Run("ErrInvalidMessage drops non-positive ids", func(t *testing.T) {
		msg := ErrInvalidMessage(-1)
		assert.Zero(t, msg.Id)

		msg = ErrInvalidMessage(5)
		assert.Equal(t, 5, msg.Id)
	})
}

func TestClientMessageUnmarshal(t *testing.T) {
	raw := `{
		"id": 7,
		"send_message": {
			"order_id": "ORD-1",
			"message_text": "hello",
			"from_admin_app": true,
			"attachments": [{"url": "https://files.example.com/a.pdf", "type": "application/pdf", "name": "a.pdf", "size": 10}]
		}
	}`

	var msg ClientMessage
	assert.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, 7, msg.Id)
	assert.Nil(t, msg.Join)
	assert.Nil(t, msg.Leave)
	assert.NotNil(t, msg.Publish)
	assert.Equal(t, "ORD-1", msg.Publish.OrderId)
	assert.True(t, msg.Publish.FromAdminApp)
	assert.Len(t, msg.Publish.Attachments, 1)
}

func TestNow(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location(), "expected UTC timestamp")
	assert.Zero(t, now.Nanosecond()%int(time.Millisecond), "expected millisecond precision")
}
