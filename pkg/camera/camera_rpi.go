//go:build linux && arm64

package camera

import (
	"errors"
	"os/exec"
	"strconv"
)

// streamCommand runs rpicam-vid (libcamera-vid on older images) in MJPEG
// mode on stdout. The process keeps the sensor open between frames.
func streamCommand(width, height, fps int) (*exec.Cmd, error) {
	name := "rpicam-vid"
	if _, err := exec.LookPath(name); err != nil {
		name = "libcamera-vid"
		if _, err := exec.LookPath(name); err != nil {
			return nil, errors.New("neither rpicam-vid nor libcamera-vid found")
		}
	}

	return exec.Command(
		name,
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--timeout", "0",
		"--nopreview",
		"--codec", "mjpeg",
		"--output", "-",
		"--framerate", strconv.Itoa(fps),
		"--awb", "auto",
		"--metering", "average",
	), nil
}
