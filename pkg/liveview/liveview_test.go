package liveview

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wachiwi/fishcam/pkg/display"
	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/hal/haltest"
	"github.com/wachiwi/fishcam/pkg/jpegcodec"
	"github.com/wachiwi/fishcam/pkg/mjpeg"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/storage"
)

var t0 = time.Unix(1_700_000_000, 0)

type fixture struct {
	c   *Controller
	bus *msg.Bus
	cam *haltest.FakeCamera
	fb  *display.Framebuffer
	dir string
}

// failingFiles refuses to create files.
type failingFiles struct {
	hal.FileService
}

func (failingFiles) CreateNew(name string) (hal.WriteFile, error) {
	return nil, msg.ErrFile
}

// brokenEncoder fails after writing the JPEG header.
type brokenEncoder struct{}

func (brokenEncoder) Begin(w io.Writer, width, height, quality int) error {
	_, err := w.Write([]byte{0xFF, 0xD8, 0xFF})
	return err
}

func (brokenEncoder) EncodeLine([]byte) error { return msg.ErrMemory }
func (brokenEncoder) End() error              { return nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	bus := msg.NewBus(32)
	cam := &haltest.FakeCamera{Color: hal.Red}
	fb := display.New(32, 24, hal.RGB565)
	c := New(bus, cam, fb, fs, jpegcodec.NewEncoder(), Config{MovieInterval: 100 * time.Millisecond})
	c.sleep = func(time.Duration) {}
	c.now = func() time.Time { return t0 }
	return &fixture{c: c, bus: bus, cam: cam, fb: fb, dir: dir}
}

func drain(bus *msg.Bus, id msg.ModuleID) []msg.Message {
	var out []msg.Message
	for {
		m, ok := bus.Mailbox(id).TryReceive()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

// request sends req from the orchestrator and returns the completion, if any.
func (f *fixture) request(t *testing.T, cmd msg.Command) (msg.Result, bool) {
	t.Helper()
	f.c.Handle(context.Background(), msg.Request(msg.Orchestrator, cmd))
	comps := drain(f.bus, msg.Orchestrator)
	if len(comps) > 1 {
		t.Fatalf("More than one completion: %v", comps)
	}
	if len(comps) == 0 {
		return 0, false
	}
	if comps[0].Command != cmd.Completion() || comps[0].Sender != msg.Liveview {
		t.Fatalf("Unexpected completion %s", comps[0])
	}
	return comps[0].Result(), true
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if r, ok := f.request(t, msg.CmdStart); !ok || r != msg.ResultOK {
		t.Fatalf("Start: %v %v", r, ok)
	}
	drain(f.bus, msg.Input)
}

func (f *fixture) notify(in msg.InputType, param int16) {
	f.c.Handle(context.Background(), msg.Notification(in, param))
}

func (f *fixture) read(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func assertLive(t *testing.T, f *fixture) {
	t.Helper()
	if f.c.State() != Active {
		t.Fatalf("Expected active, got %s", f.c.State())
	}
	if running, mode := f.cam.Running(); !running || mode != hal.Continuous {
		t.Fatalf("Live feed not running: %v %s", running, mode)
	}
}

func TestStartRegistersInputsAndRejectsSecondStart(t *testing.T) {
	f := newFixture(t)
	if r, _ := f.request(t, msg.CmdStart); r != msg.ResultOK {
		t.Fatalf("Start failed: %s", r)
	}
	regs := drain(f.bus, msg.Input)
	want := map[msg.InputType]bool{msg.KeyCapture: true, msg.KeyOther: true, msg.Dial: true}
	if len(regs) != len(want) {
		t.Fatalf("Expected %d registrations, got %v", len(want), regs)
	}
	for _, m := range regs {
		if m.Command != msg.CmdRegister || m.Sender != msg.Liveview || !want[m.Input.Type] {
			t.Errorf("Unexpected registration %s", m)
		}
	}
	assertLive(t, f)

	if r, _ := f.request(t, msg.CmdStart); r != msg.ResultState {
		t.Errorf("Second start: expected state error, got %s", r)
	}
	if regs := drain(f.bus, msg.Input); len(regs) != 0 {
		t.Errorf("Rejected start touched registrations: %v", regs)
	}
	assertLive(t, f)
}

func TestStopWhileInactive(t *testing.T) {
	f := newFixture(t)
	if r, _ := f.request(t, msg.CmdStop); r != msg.ResultState {
		t.Errorf("Expected state error, got %s", r)
	}
}

func TestStartFailureStaysInactive(t *testing.T) {
	f := newFixture(t)
	f.cam.StartErr = errors.New("sensor not responding")
	if r, _ := f.request(t, msg.CmdStart); !r.Failed() {
		t.Fatalf("Expected failure, got %s", r)
	}
	if f.c.State() != Inactive {
		t.Errorf("Expected inactive, got %s", f.c.State())
	}
	if regs := drain(f.bus, msg.Input); len(regs) != 0 {
		t.Errorf("Failed start registered inputs: %v", regs)
	}
}

func TestStopUnregisters(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	if r, _ := f.request(t, msg.CmdStop); r != msg.ResultOK {
		t.Fatalf("Stop failed: %s", r)
	}
	regs := drain(f.bus, msg.Input)
	if len(regs) != 3 {
		t.Fatalf("Expected 3 unregistrations, got %v", regs)
	}
	for _, m := range regs {
		if m.Command != msg.CmdUnregister {
			t.Errorf("Unexpected request %s", m)
		}
	}
	if running, _ := f.cam.Running(); running || f.c.State() != Inactive {
		t.Error("Capture still running after stop")
	}
}

func TestStillCapture(t *testing.T) {
	f := newFixture(t)
	var saved []string
	f.c.OnSaved = func(name, kind string, _ int) {
		saved = append(saved, kind+":"+name)
	}
	f.start(t)

	f.notify(msg.KeyCapture, 1)
	f.notify(msg.KeyCapture, 1)

	if len(saved) != 2 || saved[0] != "still:IMG000.JPG" || saved[1] != "still:IMG001.JPG" {
		t.Errorf("OnSaved calls = %v", saved)
	}

	for _, name := range []string{"IMG000.JPG", "IMG001.JPG"} {
		img, err := jpeg.Decode(bytes.NewReader(f.read(t, name)))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
			t.Errorf("%s: size %v", name, b)
		}
		r, g, _, _ := img.At(16, 12).RGBA()
		if r>>8 < 200 || g>>8 > 60 {
			t.Errorf("%s: expected the red camera frame, got r=%d g=%d", name, r>>8, g>>8)
		}
	}
	assertLive(t, f)
	if got := f.cam.Stops(); got != 2 {
		t.Errorf("Expected the feed frozen once per capture, got %d stops", got)
	}
}

func TestQualityDial(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	testCases := []struct {
		steps int16
		want  int
	}{
		{3, 90},
		{5, 100},
		{-2, 80},
		{-20, 1},
		{1, 11},
	}
	for _, tc := range testCases {
		f.notify(msg.Dial, tc.steps)
		if got := f.c.Quality(); got != tc.want {
			t.Errorf("After %d steps: quality %d, want %d", tc.steps, got, tc.want)
		}
		assertLive(t, f)
	}
}

func TestMovieRecording(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	f.notify(msg.KeyOther, 1)
	if f.c.State() != MovieRecording || f.c.Recording() != "MOV000.AVI" {
		t.Fatalf("Expected recording MOV000.AVI, got %s %q", f.c.State(), f.c.Recording())
	}
	if _, mode := f.cam.Running(); mode != hal.SingleFrame {
		t.Fatalf("Expected single-frame capture, got %s", mode)
	}

	f.cam.FireFrameReady()
	f.c.Tick(ctx, t0.Add(10*time.Millisecond))
	f.cam.FireFrameReady()
	f.c.Tick(ctx, t0.Add(60*time.Millisecond)) // not due yet
	f.c.Tick(ctx, t0.Add(120*time.Millisecond))
	if f.c.movieFrames != 2 {
		t.Fatalf("Expected 2 frames, got %d", f.c.movieFrames)
	}

	// capture and dial are ignored while recording
	f.notify(msg.KeyCapture, 1)
	f.notify(msg.Dial, 1)
	if f.c.Quality() != 60 || f.c.State() != MovieRecording {
		t.Fatal("Input other than stop changed the recording")
	}

	f.notify(msg.KeyOther, 1)
	if f.c.State() != MovieRecording {
		t.Fatal("Stop must wait for the next tick")
	}
	f.c.Tick(ctx, t0.Add(130*time.Millisecond))
	assertLive(t, f)

	sp := mjpeg.NewSplitter(bytes.NewReader(f.read(t, "MOV000.AVI")))
	frames := 0
	for {
		frame, err := sp.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(frame)); err != nil {
			t.Fatalf("Frame %d: %v", frames, err)
		}
		frames++
	}
	if frames != 2 {
		t.Errorf("Container holds %d frames, want 2", frames)
	}
}

func TestMovieWatchdogForcesFrame(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	f.notify(msg.KeyOther, 1) // armed at t0
	for _, after := range []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, 300 * time.Millisecond} {
		f.c.Tick(ctx, t0.Add(after))
		if f.c.movieFrames != 0 {
			t.Fatalf("Frame recorded at %v without frame-ready", after)
		}
	}
	stops := f.cam.Stops()
	f.c.Tick(ctx, t0.Add(301*time.Millisecond))
	if f.c.movieFrames != 1 {
		t.Fatalf("Watchdog did not force a frame, frames=%d", f.c.movieFrames)
	}
	// once before reading the late frame, once before re-arming
	if got := f.cam.Stops() - stops; got != 2 {
		t.Errorf("Expected the stalled capture stopped before encode and re-arm, got %d stops", got)
	}
	if f.c.State() != MovieRecording {
		t.Fatalf("Recording stalled: %s", f.c.State())
	}
	if starts := f.cam.Starts(); starts[len(starts)-1] != hal.SingleFrame {
		t.Error("Capture not re-armed after forced frame")
	}
}

func TestStopDuringRecordingIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	f.notify(msg.KeyOther, 1)
	if _, ok := f.request(t, msg.CmdStop); ok {
		t.Fatal("Stop answered before the frame boundary")
	}
	if r, ok := f.request(t, msg.CmdStop); !ok || r != msg.ResultDoNothing {
		t.Errorf("Repeated stop: expected do-nothing, got %v %v", r, ok)
	}

	f.c.Tick(ctx, t0.Add(time.Millisecond))
	comps := drain(f.bus, msg.Orchestrator)
	if len(comps) != 1 || comps[0].Command != msg.CmdStop.Completion() || comps[0].Result() != msg.ResultOK {
		t.Fatalf("Expected one stop completion, got %v", comps)
	}
	if f.c.State() != Inactive || f.c.Recording() != "" {
		t.Errorf("Expected inactive without movie, got %s %q", f.c.State(), f.c.Recording())
	}
	if len(f.read(t, "MOV000.AVI")) != 0 {
		t.Error("No frame was due, file must be empty")
	}
}

func TestMovieNotStartedWithoutFile(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.c.files = failingFiles{f.c.files}

	f.notify(msg.KeyOther, 1)
	assertLive(t, f)
	f.notify(msg.KeyCapture, 1)
	assertLive(t, f)
}

func (f *fixture) assertCardEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("Unexpected file left on card: %s", e.Name())
	}
}

func TestFailedStillLeavesNoFile(t *testing.T) {
	f := newFixture(t)
	var saved []string
	f.c.OnSaved = func(name, kind string, _ int) {
		saved = append(saved, name)
	}
	f.c.encoder = brokenEncoder{}
	f.start(t)

	f.notify(msg.KeyCapture, 1)
	assertLive(t, f)
	f.assertCardEmpty(t)
	if len(saved) != 0 {
		t.Errorf("Failed capture reported as saved: %v", saved)
	}

	// the index is free again for the next good capture
	f.c.encoder = jpegcodec.NewEncoder()
	f.notify(msg.KeyCapture, 1)
	if _, err := os.Stat(filepath.Join(f.dir, "IMG000.JPG")); err != nil {
		t.Errorf("Expected IMG000.JPG after a good capture: %v", err)
	}
}

func TestFailedMovieStartLeavesNoFile(t *testing.T) {
	testCases := []struct {
		name        string
		breakCamera func(*haltest.FakeCamera)
	}{
		{"stop fails", func(c *haltest.FakeCamera) { c.StopErr = errors.New("sensor busy") }},
		{"arm fails", func(c *haltest.FakeCamera) { c.StartErr = errors.New("sensor busy") }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.start(t)
			tc.breakCamera(f.cam)

			f.notify(msg.KeyOther, 1)
			if f.c.State() != Active {
				t.Errorf("Expected active, got %s", f.c.State())
			}
			if name := f.c.Recording(); name != "" {
				t.Errorf("Expected no recording, got %s", name)
			}
			f.assertCardEmpty(t)
		})
	}
}

func TestRunTicksWhileRecording(t *testing.T) {
	f := newFixture(t)
	f.c.now = time.Now
	f.cam.AutoReady = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.c.Run(ctx) }()

	send := func(m msg.Message) {
		if err := f.bus.Send(ctx, msg.Liveview, m); err != nil {
			t.Fatal(err)
		}
	}
	send(msg.Request(msg.Orchestrator, msg.CmdStart))
	if comp, err := f.bus.Mailbox(msg.Orchestrator).Receive(ctx, time.Second); err != nil || comp.Result() != msg.ResultOK {
		t.Fatalf("Start: %v %v", comp, err)
	}
	send(msg.Notification(msg.KeyOther, 1))
	time.Sleep(350 * time.Millisecond)
	send(msg.Request(msg.Orchestrator, msg.CmdStop))
	if comp, err := f.bus.Mailbox(msg.Orchestrator).Receive(ctx, time.Second); err != nil || comp.Result() != msg.ResultOK {
		t.Fatalf("Stop: %v %v", comp, err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if len(f.read(t, "MOV000.AVI")) == 0 {
		t.Error("Self-ticking recorded no frames")
	}
}
