package telemetry

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/wachiwi/fishcam"

// Instruments are created against the global provider, so they start
// exporting once Setup installs the real one.
var (
	FramesEncoded      metric.Int64Counter
	FramesSkipped      metric.Int64Counter
	FramesForcedReady  metric.Int64Counter
	FramesDecoded      metric.Int64Counter
	Sequences          metric.Int64Counter
	InputNotifications metric.Int64Counter
	CaptureRequests    metric.Int64Counter
	RemoteRequests     metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)

	FramesEncoded = counter(meter, "fishcam.frames.encoded",
		"JPEG frames written by the liveview controller", "{frame}")
	FramesSkipped = counter(meter, "fishcam.frames.skipped",
		"Ticks skipped because the frame interval had not elapsed", "{tick}")
	FramesForcedReady = counter(meter, "fishcam.frames.forced_ready",
		"Movie frames recorded without a camera frame-ready signal", "{frame}")
	FramesDecoded = counter(meter, "fishcam.frames.decoded",
		"Images and motion frames drawn by the playback controller", "{frame}")
	Sequences = counter(meter, "fishcam.sequences",
		"Mode transition sequences by outcome", "{sequence}")
	InputNotifications = counter(meter, "fishcam.input.notifications",
		"Input notifications delivered to registered modules", "{message}")
	CaptureRequests = counter(meter, "fishcam.capture.requests",
		"Capture commands acknowledged", "{request}")
	RemoteRequests = counter(meter, "fishcam.remote.requests",
		"Commands issued through the remote surface", "{request}")
}

func counter(meter metric.Meter, name, description, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		slog.Error("Failed to create metric", "name", name, "error", err)
	}
	return c
}

// Tracer returns the tracer used for mode transition spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
