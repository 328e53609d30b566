package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eddygk/dns-bench-sub000/internal/eventbus"
)

const (
	wsWriteTimeout = 10 * time.Second
	// wsSubscribeTimeout bounds how long a client may idle before sending
	// its subscribe message.
	wsSubscribeTimeout = 30 * time.Second
)

// wsSubscribe is the first message a client must send on /ws/benchmark.
type wsSubscribe struct {
	Type    string `json:"type"`
	Payload struct {
		RunID string `json:"run_id"`
	} `json:"payload"`
}

// wsEvent is the relayed event frame.
type wsEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// HandleBenchmarkWS returns the /ws/benchmark handler. The client subscribes
// to one run; the server relays that run's events until a terminal event
// closes the stream. Subscriptions do not survive reconnects.
func HandleBenchmarkWS(bus *eventbus.Bus, policies PolicySource, hostIP string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			policy, err := policies.NetworkPolicy()
			if err != nil {
				return false
			}
			return originAllowed(origin, policy, hostIP)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Printf("[ws] upgrade failed: %v", err)
			return
		}
		go serveBenchmarkWS(bus, conn)
	}
}

func serveBenchmarkWS(bus *eventbus.Bus, conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsSubscribeTimeout))
	var sub wsSubscribe
	if err := conn.ReadJSON(&sub); err != nil {
		writeWSClose(conn, websocket.ClosePolicyViolation, "expected subscribe message")
		return
	}
	if sub.Type != "subscribe" || sub.Payload.RunID == "" {
		writeWSClose(conn, websocket.ClosePolicyViolation, "subscribe requires a run_id")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	events, cancel := bus.Subscribe(sub.Payload.RunID)
	defer cancel()

	// Reader loop: discard client frames, detect disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Terminal event delivered (or run already finished).
				writeWSClose(conn, websocket.CloseNormalClosure, "run finished")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsEvent{Type: string(ev.Type), Payload: ev.Payload}); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}

func writeWSClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}
