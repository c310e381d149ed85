package websocket

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	domainEvents "github.com/AzielCF/az-relay/domains/events"
	"github.com/AzielCF/az-relay/infrastructure/valkey"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	valkeylib "github.com/valkey-io/valkey-go"
)

// client holds the channel filter a connection asked for. Empty means all.
type client struct {
	channelID string
}

type BroadcastMessage struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ChannelID string `json:"channel_id,omitempty"`
	Result    any    `json:"result"`
	SenderID  string `json:"sender_id,omitempty"`
}

type subscription struct {
	conn      *websocket.Conn
	channelID string
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Subscribe  = make(chan subscription)
	Broadcast  = make(chan BroadcastMessage, 256)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	wsChan   = "azrelay:ws_broadcast"
	localID  string
)

// SetValkeyClient enables fan-out of live events to the other servers.
func SetValkeyClient(client *valkey.Client, serverID string) {
	vkClient = client
	localID = serverID
}

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

func (c client) wants(message BroadcastMessage) bool {
	return c.channelID == "" || message.ChannelID == "" || c.channelID == message.ChannelID
}

func broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn, c := range Clients {
		if !c.wants(message) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(message BroadcastMessage) {
	if vkClient == nil {
		return
	}

	message.SenderID = localID

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	ctx := context.Background()
	cmd := vkClient.Inner().B().Publish().Channel(wsChan).Message(string(data)).Build()
	if err := vkClient.Inner().Do(ctx, cmd).Error(); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

// fromPeer reports whether a pub/sub message should reach local clients.
// Messages this server published were already delivered locally.
func fromPeer(payload string) (BroadcastMessage, bool) {
	var msg BroadcastMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, false
	}
	return msg, msg.SenderID != localID
}

func startValkeySubscriber() {
	if vkClient == nil {
		return
	}

	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := vkClient.Inner().Receive(context.Background(), vkClient.Inner().B().Subscribe().Channel(wsChan).Build(), func(msg valkeylib.PubSubMessage) {
			if broadcastMsg, ok := fromPeer(msg.Message); ok {
				broadcastToLocal(broadcastMsg)
			}
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	if vkClient != nil {
		startValkeySubscriber()
	}

	for {
		select {
		case conn := <-Register:
			handleRegister(conn)

		case sub := <-Subscribe:
			if _, ok := Clients[sub.conn]; ok {
				Clients[sub.conn] = client{channelID: sub.channelID}
			}

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-Broadcast:
			broadcastToLocal(message)
			if vkClient != nil {
				publishToValkey(message)
			}
		}
	}
}

// Publisher feeds domain events into the hub. A full hub drops the event
// rather than stall inbound processing or a broadcast loop.
type Publisher struct{}

func (Publisher) Publish(ctx context.Context, evt domainEvents.Event) error {
	message := BroadcastMessage{
		Code:      evt.Type,
		Message:   evt.Type,
		ChannelID: evt.ChannelID,
		Result:    evt.Data,
	}
	select {
	case Broadcast <- message:
	default:
		logrus.WithField("type", evt.Type).Warn("[WS] Hub backlog full, live event dropped")
	}
	return nil
}

func RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn
		if channelID := conn.Query("channel_id"); channelID != "" {
			Subscribe <- subscription{conn: conn, channelID: channelID}
		}

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Debugf("[WS] Unsupported message type: %d", messageType)
				continue
			}

			var messageData BroadcastMessage
			if err := json.Unmarshal(message, &messageData); err != nil {
				logrus.Debugf("[WS] Unmarshal error: %v", err)
				return
			}

			switch messageData.Code {
			case "SUBSCRIBE":
				Subscribe <- subscription{conn: conn, channelID: messageData.ChannelID}
			case "PING":
				_ = conn.WriteJSON(BroadcastMessage{Code: "PONG", Message: "pong"})
			}
		}
	}))
}
