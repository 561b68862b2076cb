package remote

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/journal"
	"github.com/wachiwi/fishcam/pkg/mode"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

const streamQuality = 80

type handlers struct {
	client   *Client
	screen   Screen
	media    *journal.Journal
	interval time.Duration
	log      *slog.Logger
}

// Input presses a control. The dial takes ?magnitude=n, negative for
// counter-clockwise.
func (h *handlers) Input(c *gin.Context) {
	control, err := msg.ParseInputType(c.Param("control"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	magnitude := int16(1)
	if s := c.Query("magnitude"); s != "" {
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("magnitude %q: %v", s, err)})
			return
		}
		magnitude = int16(n)
	}
	h.respond(c, "input", func(ctx context.Context) (msg.Result, error) {
		return h.client.Inject(ctx, control, magnitude)
	})
}

func (h *handlers) Trigger(c *gin.Context) {
	t, err := mode.ParseTrigger(c.Param("trigger"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, "trigger", func(ctx context.Context) (msg.Result, error) {
		return h.client.Trigger(ctx, t)
	})
}

// Command sends start, stop or capture straight to a controller, bypassing
// the orchestrator.
func (h *handlers) Command(c *gin.Context) {
	to, cmd, err := parseCommand(c.Param("module"), c.Param("command"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, "command", func(ctx context.Context) (msg.Result, error) {
		return h.client.Call(ctx, to, msg.Request(msg.Remote, cmd))
	})
}

func parseCommand(module, command string) (msg.ModuleID, msg.Command, error) {
	var to msg.ModuleID
	switch module {
	case "liveview":
		to = msg.Liveview
	case "playback":
		to = msg.Playback
	case "capture":
		to = msg.Capture
	default:
		return 0, 0, fmt.Errorf("unknown module %q: %w", module, msg.ErrParam)
	}
	switch command {
	case "start":
		return to, msg.CmdStart, nil
	case "stop":
		return to, msg.CmdStop, nil
	case "capture":
		return to, msg.CmdCapture, nil
	}
	return 0, 0, fmt.Errorf("unknown command %q: %w", command, msg.ErrParam)
}

func (h *handlers) respond(c *gin.Context, kind string, call func(context.Context) (msg.Result, error)) {
	r, err := call(c.Request.Context())
	telemetry.RemoteRequests.Add(c.Request.Context(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", r.String()),
	))
	body := gin.H{"result": r.String(), "code": int32(r)}
	if err != nil {
		h.log.Warn("Remote request failed", "op", kind, "path", c.FullPath(), "error", err)
		body["error"] = err.Error()
	}
	c.JSON(statusFor(r), body)
}

func statusFor(r msg.Result) int {
	switch r {
	case msg.ResultOK, msg.ResultDoNothing, msg.ResultNoData:
		return http.StatusOK
	case msg.ResultParam:
		return http.StatusBadRequest
	case msg.ResultState:
		return http.StatusConflict
	case msg.ResultTimeout:
		return http.StatusGatewayTimeout
	case msg.ResultNoCapacity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, h.screen.Snapshot(), &jpeg.Options{Quality: streamQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *handlers) Snapshot(c *gin.Context) {
	frame, err := h.encode()
	if err != nil {
		h.log.Error("Failed to encode snapshot", "error", err)
		c.String(http.StatusInternalServerError, "Failed to encode snapshot")
		return
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// Stream sends the display as multipart MJPEG, one part per changed frame.
func (h *handlers) Stream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	sent := false
	var last uint64
	for {
		if gen := h.screen.Generation(); !sent || gen != last {
			frame, err := h.encode()
			if err != nil {
				h.log.Error("Failed to encode stream frame", "error", err)
				return
			}
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
			sent, last = true, gen
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// Recent lists the stills and movies recorded lately.
func (h *handlers) Recent(c *gin.Context) {
	if h.media == nil {
		c.JSON(http.StatusOK, []journal.Entry{})
		return
	}
	entries, err := h.media.Entries()
	if err != nil {
		h.log.Error("Failed to read media journal", "error", err)
		c.String(http.StatusInternalServerError, "Failed to read media journal")
		return
	}
	c.JSON(http.StatusOK, entries)
}
