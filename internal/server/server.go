package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"

	"github.com/filingline/chat-relay/internal/database"
	"github.com/filingline/chat-relay/internal/mail"
	"github.com/filingline/chat-relay/internal/stats"
)

// AdminsRoom is the shared room every administrator connection joins.
const AdminsRoom = "admins"

// OrderRoom names the broadcast room scoped to one order's chat thread.
func OrderRoom(externalId string) string {
	return "order:" + externalId
}

// UserRoom names the personal room holding every connection belonging to
// one account, used for cross-order and cross-device notification.
func UserRoom(userId int) string {
	return "user:" + strconv.Itoa(userId)
}

type stopReq struct {
	done chan struct{}
}

// RelayServer fans chat events out to room members. All membership state
// is owned by the Run loop; clients and the change feed communicate with
// it exclusively over channels, so no locking is needed. Membership is
// per-process and rebuilt from scratch on every reconnect.
type RelayServer struct {
	log            *log.Logger
	db             database.RelayRepository
	stats          stats.StatsProvider
	mailer         mail.Notifier
	feedEvents     <-chan database.TableEvent
	clients        map[*Client]struct{}
	rooms          map[string]map[*Client]struct{}
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	joinChan       chan *ClientMessage
	leaveChan      chan *ClientMessage
	publishChan    chan *ClientMessage
	stop           chan stopReq
}

func NewRelayServer(logger *log.Logger, db database.RelayRepository, su stats.StatsProvider,
	mailer mail.Notifier, feed database.ChangeFeed) (*RelayServer, error) {
	rs := &RelayServer{
		log:            logger,
		db:             db,
		stats:          su,
		mailer:         mailer,
		feedEvents:     feed.Events(),
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		joinChan:       make(chan *ClientMessage, 256),
		leaveChan:      make(chan *ClientMessage, 256),
		publishChan:    make(chan *ClientMessage, 256),
		stop:           make(chan stopReq),
	}

	for _, metric := range []string{"NumConnections", "NumRooms", "MessagesRelayed", "ChangeFeedEvents"} {
		rs.stats.RegisterMetric(metric)
	}

	return rs, nil
}

func (rs *RelayServer) Run() {
	events := rs.feedEvents
	for {
		select {
		case client := <-rs.RegisterChan:
			rs.addClient(client)
		case client := <-rs.deRegisterChan:
			rs.removeClient(client)
		case msg := <-rs.joinChan:
			rs.handleJoin(msg)
		case msg := <-rs.leaveChan:
			rs.handleLeave(msg)
		case msg := <-rs.publishChan:
			rs.handleSend(msg)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			rs.handleChangeEvent(ev)
		case req := <-rs.stop:
			rs.log.Println("stopping relay")
			for client := range rs.clients {
				client.stopClient()
			}
			close(req.done)
			return
		}
	}
}

// Shutdown stops the relay loop and disconnects all clients.
func (rs *RelayServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case rs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addClient registers a connection and grants its identity-derived room
// memberships: the personal room always, the admins room for admins.
// These require no per-call authorization.
func (rs *RelayServer) addClient(c *Client) {
	rs.log.Printf("session %s: adding connection for user %d", c.sessionId, c.user.Id)
	rs.clients[c] = struct{}{}
	rs.stats.Incr("NumConnections")

	rs.addToRoom(UserRoom(c.user.Id), c)
	if c.user.IsAdmin {
		rs.addToRoom(AdminsRoom, c)
	}
}

func (rs *RelayServer) removeClient(c *Client) {
	if _, ok := rs.clients[c]; !ok {
		return
	}

	rs.log.Printf("session %s: removing connection for user %d", c.sessionId, c.user.Id)
	delete(rs.clients, c)
	rs.stats.Decr("NumConnections")

	for name, members := range rs.rooms {
		if _, ok := members[c]; ok {
			rs.removeFromRoom(name, c)
		}
	}
}

func (rs *RelayServer) addToRoom(name string, c *Client) {
	if rs.rooms[name] == nil {
		rs.rooms[name] = make(map[*Client]struct{})
		rs.stats.Incr("NumRooms")
	}
	rs.rooms[name][c] = struct{}{}
}

func (rs *RelayServer) removeFromRoom(name string, c *Client) {
	members, ok := rs.rooms[name]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(rs.rooms, name)
		rs.stats.Decr("NumRooms")
	}
}

// deliver sends msg to every current member of the room. Callers targeting
// several rooms will reach overlapping members more than once; consumers
// deduplicate by message id.
func (rs *RelayServer) deliver(room string, msg *ServerMessage) {
	for client := range rs.rooms[room] {
		client.queueMessage(msg)
	}
}

// handleJoin grants or denies membership in an order room. Joining is the
// sole access-control boundary for delivery: a connection that never
// joined a room never receives events scoped to it. Administrators join
// unconditionally; everyone else must own the order. An order lookup
// failure produces the same rejection as an ownership mismatch.
func (rs *RelayServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	orderId := msg.Join.OrderId

	if !c.user.IsAdmin {
		order, err := rs.db.GetOrderByExternalId(orderId)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				rs.log.Println("get order:", err)
			}
			c.queueMessage(ErrUnauthorized(msg.Id))
			return
		}

		if order.AccountId != c.user.Id {
			c.queueMessage(ErrUnauthorized(msg.Id))
			return
		}
	}

	rs.addToRoom(OrderRoom(orderId), c)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"order_id": orderId}))
}

// handleLeave removes the connection from the order room. Leaving is
// always safe, so there is no authorization check.
func (rs *RelayServer) handleLeave(msg *ClientMessage) {
	rs.removeFromRoom(OrderRoom(msg.Leave.OrderId), msg.client)
	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}
