package api

import (
	"log"
	"net/http"

	"github.com/BiomeFund/biomebridge-go/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The activity feed is read-only and carries no secrets; origin policy
	// is enforced by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ActivityHub fans processed-donation events out to connected dashboard
// clients.
type ActivityHub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan models.Activity
	clients    map[*websocket.Conn]bool
}

func NewActivityHub() *ActivityHub {
	return &ActivityHub{
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan models.Activity, 64),
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *ActivityHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
			log.Printf("Activity client connected (%d total)", len(h.clients))

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}

		case activity := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteJSON(activity); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// Broadcast queues an activity event without blocking the pipeline. Events
// are dropped when the feed backs up.
func (h *ActivityHub) Broadcast(activity models.Activity) {
	select {
	case h.broadcast <- activity:
	default:
	}
}

// ActivityWSHandler upgrades the connection and keeps it registered until
// the client goes away.
func ActivityWSHandler(hub *ActivityHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ERROR: Websocket upgrade failed: %v", err)
			return
		}
		hub.register <- conn

		// Drain control frames; the feed is write-only.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.unregister <- conn
					return
				}
			}
		}()
	}
}
