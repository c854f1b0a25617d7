package server

import (
	"github.com/filingline/chat-relay/internal/database"
)

// handleChangeEvent mirrors a storage-level change to the affected rooms.
// This is the path that keeps sockets current when rows are written
// outside the relay, for example by the REST API or a back-office job.
// Connections in both an order room and the admins room receive the
// mirrored event once per membership; consumers deduplicate by message id.
func (rs *RelayServer) handleChangeEvent(ev database.TableEvent) {
	rs.stats.Incr("ChangeFeedEvents")

	switch ev.Table {
	case "messages":
		rs.mirrorMessageEvent(ev)
	case "orders":
		rs.deliver(AdminsRoom, &ServerMessage{
			BaseMessage:      BaseMessage{Timestamp: Now()},
			DashboardRefresh: &DashboardRefresh{},
		})
	default:
		rs.log.Printf("change feed: unknown table %q", ev.Table)
	}
}

// mirrorMessageEvent re-reads the changed message row and broadcasts it as
// new-message or message-updated to the order room, the admins room, and
// the owner's personal room. Deletes carry no row to mirror and are
// dropped.
func (rs *RelayServer) mirrorMessageEvent(ev database.TableEvent) {
	if ev.Op == database.OpDelete {
		return
	}

	msg, err := rs.db.GetMessageById(ev.Id)
	if err != nil {
		rs.log.Printf("change feed: read message %d: %v", ev.Id, err)
		return
	}

	order, err := rs.db.GetOrderById(msg.OrderId)
	if err != nil {
		rs.log.Printf("change feed: read order %d: %v", msg.OrderId, err)
		return
	}

	event := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
	}
	payload := &MessageEvent{
		OrderId: order.ExternalId,
		Message: toWireMessage(msg, order.ExternalId),
	}

	switch ev.Op {
	case database.OpInsert:
		event.NewMessage = payload
	case database.OpUpdate:
		event.MessageUpdated = payload
	default:
		return
	}

	rs.deliver(OrderRoom(order.ExternalId), event)
	rs.deliver(AdminsRoom, event)
	rs.deliver(UserRoom(order.AccountId), event)
}
