package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/server"
	"github.com/filingline/chat-relay/internal/types"
	"github.com/gorilla/websocket"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type CreateMessageRequest struct {
	MessageText string             `json:"message_text"`
	Attachments []types.Attachment `json:"attachments,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *RelayApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *RelayApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(account.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.resolveIdentity(account.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(user.Id, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  user,
	})
}

// authorizeOrder loads the order named in the path and checks the caller
// may act on it. Missing orders and ownership failures both come back as
// forbidden so order ids cannot be probed.
func (s *RelayApp) authorizeOrder(r *http.Request) (database.Order, *ApiError) {
	user, ok := UserFrom(r.Context())
	if !ok {
		return database.Order{}, NewUnauthorizedError()
	}

	externalId := r.PathValue("order_id")
	if externalId == "" {
		return database.Order{}, NewBadRequestError()
	}

	order, err := s.db.GetOrderByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Order{}, NewForbiddenError()
		}
		return database.Order{}, NewInternalServerError(err)
	}

	if !user.IsAdmin && order.AccountId != user.Id {
		return database.Order{}, NewForbiddenError()
	}

	return order, nil
}

func (s *RelayApp) getOrderMessages(w http.ResponseWriter, r *http.Request) {
	order, apiErr := s.authorizeOrder(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.ListMessagesByOrderId(order.Id, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, msg := range dbMessages {
		messages = append(messages, wireMessage(msg, order.ExternalId))
	}

	s.writeJson(w, http.StatusOK, messages)
}

// createOrderMessage persists a message through the REST surface. The
// change feed mirrors the insert to connected sockets, so no broadcast
// happens here.
func (s *RelayApp) createOrderMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	order, apiErr := s.authorizeOrder(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.MessageText == "" && len(req.Attachments) == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	stored, err := s.db.CreateMessage(database.CreateMessageParams{
		OrderId:     order.Id,
		SenderId:    user.Id,
		IsAdmin:     user.IsAdmin,
		MessageText: req.MessageText,
		Attachments: req.Attachments,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, wireMessage(stored, order.ExternalId))
}

// markRead marks the caller's side of the order thread as read. The
// resulting row updates reach sockets through the change feed.
func (s *RelayApp) markRead(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	order, apiErr := s.authorizeOrder(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if err := s.db.MarkMessagesRead(order.Id, user.IsAdmin); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *RelayApp) health(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		s.writeJson(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unavailable",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	s.writeJson(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

func (s *RelayApp) serveWs(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client, err := server.NewClient(user, conn, s.relay, s.log)
	if err != nil {
		s.log.Println("error creating client:", err)
		conn.Close()
		return
	}

	s.relay.RegisterChan <- client
	go client.Write()
	go client.Read()
}

func wireMessage(m database.Message, orderExternalId string) types.Message {
	return types.Message{
		Id:          m.Id,
		OrderId:     orderExternalId,
		SenderId:    m.SenderId,
		IsAdmin:     m.IsAdmin,
		MessageText: m.MessageText,
		Attachments: m.Attachments,
		ReadByUser:  m.ReadByUser,
		ReadByAdmin: m.ReadByAdmin,
		CreatedAt:   m.CreatedAt,
	}
}
