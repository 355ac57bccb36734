// Package engine provides the Lisp evaluation engine for cutsim job
// scripts. It wraps zygomys in a sandboxed environment and produces a
// toolpath.Program from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/kernel/sdfx"
	"github.com/chazu/cutsim/pkg/toolpath"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning about the evaluated program.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	Step    int // index into Program.Steps, -1 for the whole program
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Program  *toolpath.Program
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment for
// determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	kernel     kernel.Kernel
	timeout    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithKernel sets the geometry kernel behind the CSG forms.
func WithKernel(k kernel.Kernel) Option {
	return func(e *Engine) {
		e.kernel = k
	}
}

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates a new Engine backed by the sdfx kernel.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{kernel: sdfx.New(), timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs a job script and returns the program it declares.
//
// Return semantics:
//   - On success: returns program + nil errors + nil error
//   - On parse/eval failure: returns nil program + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*toolpath.Program, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{program: p, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
}

// Run evaluates source and validates the resulting program. Validation
// errors are reported as eval errors and clear the program; validation
// warnings are passed through.
func (e *Engine) Run(source string) (EvalResult, error) {
	p, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{}, err
	}
	if len(evalErrs) > 0 {
		return EvalResult{Errors: evalErrs}, nil
	}
	res := toolpath.Validate(p)
	out := EvalResult{Program: p}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, EvalWarning{Line: w.Line, Message: w.Message, Step: w.Step})
	}
	for _, ve := range res.Errors {
		out.Errors = append(out.Errors, EvalError{Line: ve.Line, Message: ve.Error()})
	}
	if len(out.Errors) > 0 {
		out.Program = nil
	}
	return out, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*toolpath.Program, []EvalError, error) {
	// Empty source is a valid program with the default stock and no steps.
	if strings.TrimSpace(source) == "" {
		return toolpath.New(), nil, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := newBuilder(e.kernel)
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return b.prog, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
