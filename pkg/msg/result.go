package msg

import (
	"errors"
	"fmt"
)

// Result is the status code carried by completions.
type Result int32

const (
	ResultOK         Result = 0
	ResultNoData     Result = 1
	ResultDoNothing  Result = 2
	ResultError      Result = -1
	ResultTimeout    Result = -3
	ResultState      Result = -4
	ResultParam      Result = -5
	ResultFile       Result = -6
	ResultMemory     Result = -7
	ResultNoCapacity Result = -8
)

// Sentinel errors matching the result codes. Wrap them with %w so the code
// survives the trip through a completion.
var (
	ErrNoData     = errors.New("no data")
	ErrIgnored    = errors.New("request ignored")
	ErrTimeout    = errors.New("timeout")
	ErrState      = errors.New("operation invalid in current state")
	ErrParam      = errors.New("invalid parameter")
	ErrFile       = errors.New("file error")
	ErrMemory     = errors.New("allocation failed")
	ErrNoCapacity = errors.New("no capacity")
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNoData:
		return "no-data"
	case ResultDoNothing:
		return "do-nothing"
	case ResultError:
		return "error"
	case ResultTimeout:
		return "timeout"
	case ResultState:
		return "state-error"
	case ResultParam:
		return "param-error"
	case ResultFile:
		return "file-error"
	case ResultMemory:
		return "memory-error"
	case ResultNoCapacity:
		return "no-capacity"
	}
	return fmt.Sprintf("result(%d)", int32(r))
}

// Failed reports whether r must abort a sequence. DoNothing and NoData are
// not failures.
func (r Result) Failed() bool { return r < 0 }

// Err converts r back into a sentinel error, nil for ResultOK.
func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultNoData:
		return ErrNoData
	case ResultDoNothing:
		return ErrIgnored
	case ResultTimeout:
		return ErrTimeout
	case ResultState:
		return ErrState
	case ResultParam:
		return ErrParam
	case ResultFile:
		return ErrFile
	case ResultMemory:
		return ErrMemory
	case ResultNoCapacity:
		return ErrNoCapacity
	}
	return fmt.Errorf("%s", r)
}

// ResultOf maps an error onto the status-code taxonomy.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrIgnored):
		return ResultDoNothing
	case errors.Is(err, ErrNoData):
		return ResultNoData
	case errors.Is(err, ErrTimeout):
		return ResultTimeout
	case errors.Is(err, ErrState):
		return ResultState
	case errors.Is(err, ErrParam):
		return ResultParam
	case errors.Is(err, ErrFile):
		return ResultFile
	case errors.Is(err, ErrMemory):
		return ResultMemory
	case errors.Is(err, ErrNoCapacity):
		return ResultNoCapacity
	}
	return ResultError
}
