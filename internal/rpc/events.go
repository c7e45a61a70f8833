package rpc

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conductor-dev/conductor/internal/normalizer"
)

// SessionEvent is the wire envelope every frame on an agent stream carries.
// Kind "started"/"completed" are transport-level bookkeeping markers the
// Supervisor's pump emits before/after the normalizer ever runs, carried
// verbatim from supervisor.Frame.Kind; Kind "event" wraps one of the
// normalizer's own uniform events -- including a real agent.started or
// agent.completed, which is never collapsed into the transport markers.
type SessionEvent struct {
	SessionID string           `json:"session_id"`
	Kind      string           `json:"kind"`
	Payload   normalizer.Event `json:"payload"`
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
