package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/ports"
)

// DefaultTimeout applies when an Op carries no timeout.
const DefaultTimeout = 300 * time.Second

// ErrTimedOut is returned when the process outlives its timeout and is killed.
var ErrTimedOut = errors.New("timed out")

// ExternalToolError reports a checked process that exited non-zero.
type ExternalToolError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d\n%s", e.Name, e.ExitCode, tail(e.Stderr, 2000))
}

// Gateway spawns one OS process per Run. It keeps no shared state besides
// the logger so it is safe for concurrent use.
type Gateway struct {
	log *slog.Logger
	// killGrace bounds how long Wait blocks on pipes after a kill.
	killGrace time.Duration
}

func New(log *slog.Logger) *Gateway {
	return &Gateway{log: logging.OrDiscard(log), killGrace: 5 * time.Second}
}

func (g *Gateway) Run(ctx context.Context, op ports.Op) (ports.Result, error) {
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(callCtx, op.Name, op.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = g.killGrace

	start := time.Now()
	err := cmd.Run()
	res := ports.Result{OK: err == nil, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	g.log.Debug("external op finished",
		"tool", op.Name,
		"ok", res.OK,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err == nil {
		return res, nil
	}

	// The parent context wins: a cancelled batch is not a tool timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s after %s: %w", op.Name, timeout, ErrTimedOut)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if !op.Check {
			return res, nil
		}
		return res, &ExternalToolError{Name: op.Name, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	// Start failures (missing binary, permissions) are always errors.
	return res, fmt.Errorf("%s: %w", op.Name, err)
}

// IsTimeout reports whether err came from a killed, overdue process.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimedOut) }

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
