package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func orderRequest(method, target string, user types.User, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.SetPathValue("order_id", "ORD-1")
	return req.WithContext(WithUser(req.Context(), user))
}

func TestHealth(t *testing.T) {
	tcases := []struct {
		name         string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "healthy",
			expectedCode: http.StatusOK,
		},
		{
			name:         "database unreachable",
			mockErr:      errors.New("db error"),
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRelayRepository{}
			db.On("Ping").Return(tc.mockErr).Once()
			defer db.AssertExpectations(t)

			app := newTestApp(t, db)
			rr := httptest.NewRecorder()
			app.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.expectedCode, rr.Code)

			var resp HealthResponse
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotZero(t, resp.Timestamp)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	account := database.Account{Id: 1, EmailAddress: "user@example.com", PasswordHash: string(hash)}

	t.Run("successful login returns token and identity", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetAccountByEmail", "user@example.com").Return(account, nil)
		db.On("GetAccountById", 1).Return(account, nil)
		db.On("IsAdmin", 1).Return(false, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)

		body, _ := json.Marshal(LoginRequest{Email: "user@example.com", Password: "password"})
		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp LoginResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, 1, resp.User.Id)
		assert.False(t, resp.User.IsAdmin)

		userId, err := app.extractUserIdFromToken(resp.Token)
		assert.NoError(t, err)
		assert.Equal(t, 1, userId)
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetAccountByEmail", "user@example.com").Return(account, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)

		body, _ := json.Marshal(LoginRequest{Email: "user@example.com", Password: "wrong"})
		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetAccountByEmail", "nobody@example.com").Return(database.Account{}, sql.ErrNoRows)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)

		body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "password"})
		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		app := newTestApp(t, &database.MockRelayRepository{})

		body, _ := json.Marshal(LoginRequest{Email: "user@example.com"})
		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetOrderMessages(t *testing.T) {
	order := database.Order{Id: 10, ExternalId: "ORD-1", AccountId: 5}
	dbMessages := []database.Message{
		{Id: 1, OrderId: 10, SenderId: 5, MessageText: "hello", ReadByUser: true},
		{Id: 2, OrderId: 10, SenderId: 9, IsAdmin: true, MessageText: "hi", ReadByAdmin: true},
	}

	t.Run("owner lists messages", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("ListMessagesByOrderId", 10, 0).Return(dbMessages, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.getOrderMessages(rr, orderRequest(http.MethodGet, "/api/orders/ORD-1/messages", types.User{Id: 5}, nil))

		assert.Equal(t, http.StatusOK, rr.Code)

		var messages []types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
		assert.Len(t, messages, 2)
		assert.Equal(t, "ORD-1", messages[0].OrderId)
	})

	t.Run("limit is passed through", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("ListMessagesByOrderId", 10, 25).Return([]database.Message{}, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.getOrderMessages(rr, orderRequest(http.MethodGet, "/api/orders/ORD-1/messages?limit=25", types.User{Id: 5}, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.getOrderMessages(rr, orderRequest(http.MethodGet, "/api/orders/ORD-1/messages", types.User{Id: 99}, nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "ListMessagesByOrderId", mock.Anything, mock.Anything)
	})

	t.Run("unknown order is forbidden", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(database.Order{}, sql.ErrNoRows)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.getOrderMessages(rr, orderRequest(http.MethodGet, "/api/orders/ORD-1/messages", types.User{Id: 5}, nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin may list any order", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("ListMessagesByOrderId", 10, 0).Return(dbMessages, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.getOrderMessages(rr, orderRequest(http.MethodGet, "/api/orders/ORD-1/messages", types.User{Id: 9, IsAdmin: true}, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestCreateOrderMessage(t *testing.T) {
	order := database.Order{Id: 10, ExternalId: "ORD-1", AccountId: 5}

	t.Run("persists message for owner", func(t *testing.T) {
		stored := database.Message{Id: 100, OrderId: 10, SenderId: 5, MessageText: "hello", ReadByUser: true}

		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("CreateMessage", database.CreateMessageParams{
			OrderId:     10,
			SenderId:    5,
			MessageText: "hello",
		}).Return(stored, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.createOrderMessage(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/messages",
			types.User{Id: 5}, CreateMessageRequest{MessageText: "hello"}))

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 100, resp.Id)
		assert.Equal(t, "ORD-1", resp.OrderId)
	})

	t.Run("rejects empty message", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.createOrderMessage(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/messages",
			types.User{Id: 5}, CreateMessageRequest{}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.createOrderMessage(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/messages",
			types.User{Id: 99}, CreateMessageRequest{MessageText: "hello"}))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})
}

func TestMarkRead(t *testing.T) {
	order := database.Order{Id: 10, ExternalId: "ORD-1", AccountId: 5}

	t.Run("owner marks user side read", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("MarkMessagesRead", 10, false).Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.markRead(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/read", types.User{Id: 5}, nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("admin marks admin side read", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("MarkMessagesRead", 10, true).Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.markRead(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/read", types.User{Id: 9, IsAdmin: true}, nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetOrderByExternalId", "ORD-1").Return(order, nil)
		db.On("MarkMessagesRead", 10, false).Return(errors.New("db error")).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		app.markRead(rr, orderRequest(http.MethodPost, "/api/orders/ORD-1/read", types.User{Id: 5}, nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	account := database.Account{Id: 1, EmailAddress: "user@example.com"}

	t.Run("attaches identity to context", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetAccountById", 1).Return(account, nil)
		db.On("IsAdmin", 1).Return(true, nil)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		token, err := app.createJwtForSession(1, defaultJwtExpiration)
		assert.NoError(t, err)

		var got types.User
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			got, _ = UserFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/orders/ORD-1/messages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, types.User{Id: 1, EmailAddress: "user@example.com", IsAdmin: true}, got)
	})

	t.Run("rejects missing token", func(t *testing.T) {
		app := newTestApp(t, &database.MockRelayRepository{})

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/orders/ORD-1/messages", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects token for deleted account", func(t *testing.T) {
		db := &database.MockRelayRepository{}
		db.On("GetAccountById", 1).Return(database.Account{}, sql.ErrNoRows)
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		token, err := app.createJwtForSession(1, defaultJwtExpiration)
		assert.NoError(t, err)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/orders/ORD-1/messages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
