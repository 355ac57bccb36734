package engine

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/toolpath"
)

// EvalTimeout bounds how long a job script may run before the caller gives
// up on it. Scripts only build the program; simulation time is not counted.
const EvalTimeout = 5 * time.Second

var (
	// ErrSuperseded is returned to a caller whose script finished after a
	// newer Evaluate call had started.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
	// ErrTimedOut is returned when a script outlives the engine timeout.
	ErrTimedOut = errors.New("evaluation timed out")
)

// evalResult carries what the evaluating goroutine produced.
type evalResult struct {
	program *toolpath.Program
	errors  []EvalError
	err     error
}

// waitWithTimeout blocks until the script goroutine reports on ch or the
// timeout fires. A program is only handed back if gen is still the engine's
// latest generation when it arrives.
//
// A timed out script keeps running in the interpreter. Its late result lands
// in the buffered channel and is never read.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*toolpath.Program, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		latest := *currentGen == gen
		mu.Unlock()
		if !latest {
			return nil, nil, ErrSuperseded
		}
		return res.program, res.errors, res.err

	case <-timer.C:
		return nil, nil, errors.Wrapf(ErrTimedOut, "after %s", timeout)
	}
}
