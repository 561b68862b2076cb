//go:build darwin

package camera

import (
	"fmt"
	"os/exec"
)

// streamCommand captures the default webcam through ffmpeg for local
// development.
func streamCommand(width, height, _ int) (*exec.Cmd, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	// AVFoundation devices only accept their native 30 fps
	return exec.Command(
		"ffmpeg",
		"-f", "avfoundation",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", "0",
		"-f", "mjpeg",
		"-q:v", "5",
		"-hide_banner",
		"-loglevel", "error",
		"-",
	), nil
}
