//go:build !darwin && !(linux && arm64)

package camera

import (
	"errors"
	"os/exec"
)

func streamCommand(_, _, _ int) (*exec.Cmd, error) {
	return nil, errors.New("no camera streaming command on this platform")
}
