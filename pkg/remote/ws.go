package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wachiwi/fishcam/pkg/mode"
	"github.com/wachiwi/fishcam/pkg/msg"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is a control message from the browser. Exactly one of Input and
// Trigger is set.
type wsRequest struct {
	Input     string `json:"input,omitempty"`
	Magnitude int16  `json:"magnitude,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
}

type wsReply struct {
	Request wsRequest `json:"request"`
	Result  string    `json:"result"`
	Error   string    `json:"error,omitempty"`
}

// Live upgrades to a websocket that pushes the display as binary JPEG
// messages and accepts JSON control requests, answered with text messages.
func (h *handlers) Live(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	replies := make(chan wsReply, 4)
	go h.liveRead(ctx, cancel, conn, replies)
	h.liveWrite(ctx, conn, replies)
}

func (h *handlers) liveRead(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- wsReply) {
	defer cancel()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Websocket closed unexpectedly", "error", err)
			}
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.log.Debug("Bad websocket request", "error", err)
			continue
		}
		r, err := h.liveCall(ctx, req)
		reply := wsReply{Request: req, Result: r.String()}
		if err != nil {
			reply.Error = err.Error()
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *handlers) liveCall(ctx context.Context, req wsRequest) (msg.Result, error) {
	switch {
	case req.Input != "":
		control, err := msg.ParseInputType(req.Input)
		if err != nil {
			return msg.ResultParam, err
		}
		magnitude := req.Magnitude
		if magnitude == 0 {
			magnitude = 1
		}
		return h.client.Inject(ctx, control, magnitude)
	case req.Trigger != "":
		t, err := mode.ParseTrigger(req.Trigger)
		if err != nil {
			return msg.ResultParam, err
		}
		return h.client.Trigger(ctx, t)
	}
	return msg.ResultParam, fmt.Errorf("empty request: %w", msg.ErrParam)
}

// liveWrite owns every write to conn.
func (h *handlers) liveWrite(ctx context.Context, conn *websocket.Conn, replies <-chan wsReply) {
	frames := time.NewTicker(h.interval)
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		frames.Stop()
		ping.Stop()
		conn.Close()
	}()

	sent := false
	var last uint64
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}

		case <-frames.C:
			gen := h.screen.Generation()
			if sent && gen == last {
				continue
			}
			frame, err := h.encode()
			if err != nil {
				h.log.Error("Failed to encode stream frame", "error", err)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
			sent, last = true, gen

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
