package server

import (
	"database/sql"
	"errors"

	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/types"
)

// handleSend validates, authorizes, and persists an inbound chat message,
// then acks the sender and fans the stored row out to the order room and
// the admins room. Persistence failures produce an error ack and no
// broadcast.
func (rs *RelayServer) handleSend(msg *ClientMessage) {
	c := msg.client
	send := msg.Publish

	if send.MessageText == "" && len(send.Attachments) == 0 {
		c.queueMessage(ErrEmptyMessage(msg.Id))
		return
	}

	order, err := rs.db.GetOrderByExternalId(send.OrderId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			rs.log.Println("get order:", err)
		}
		c.queueMessage(ErrUnauthorized(msg.Id))
		return
	}

	if !c.user.IsAdmin && order.AccountId != c.user.Id {
		c.queueMessage(ErrUnauthorized(msg.Id))
		return
	}

	// The message's side of the conversation follows the sending
	// application, not the sender's privilege bit.
	stored, err := rs.db.CreateMessage(database.CreateMessageParams{
		OrderId:     order.Id,
		SenderId:    c.user.Id,
		IsAdmin:     send.FromAdminApp,
		MessageText: send.MessageText,
		Attachments: send.Attachments,
	})
	if err != nil {
		rs.log.Println("create message:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	rs.stats.Incr("MessagesRelayed")
	c.queueMessage(NoErrAccepted(msg.Id))

	event := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		NewMessage: &MessageEvent{
			OrderId: order.ExternalId,
			Message: toWireMessage(stored, order.ExternalId),
		},
	}
	rs.deliver(OrderRoom(order.ExternalId), event)
	rs.deliver(AdminsRoom, event)

	if send.FromAdminApp && send.MessageText != "" {
		go rs.notifyOwner(order, send.MessageText)
	}
}

// notifyOwner emails the order's owner about a new staff message. It runs
// off the relay loop; failures are logged and never surfaced to the sender.
func (rs *RelayServer) notifyOwner(order database.Order, messageText string) {
	owner, err := rs.db.GetAccountById(order.AccountId)
	if err != nil {
		rs.log.Printf("notify owner of order %s: lookup account %d: %v",
			order.ExternalId, order.AccountId, err)
		return
	}

	if err := rs.mailer.SendNewMessage(owner.EmailAddress, order.ExternalId, messageText); err != nil {
		rs.log.Printf("notify owner of order %s: %v", order.ExternalId, err)
	}
}

func toWireMessage(m database.Message, orderExternalId string) types.Message {
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
