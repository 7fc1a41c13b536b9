package converter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Argument placeholders replaced by Transcode
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

const stderrTail = 4096

var (
	// ErrTranscoderTimeout is returned when the process exceeded its time budget and was killed
	ErrTranscoderTimeout = errors.New("transcoder timed out")

	// ErrTranscoderNotStarted is returned when the process could not be started at all
	ErrTranscoderNotStarted = errors.New("transcoder could not be started")
)

// ExitError is returned when the transcoder exits with a non-zero status
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("transcoder exited with status %d", e.Code)
	}
	return fmt.Sprintf("transcoder exited with status %d: %s", e.Code, e.Stderr)
}

// Transcoder converts the file at input into the file at output
type Transcoder interface {
	Transcode(ctx context.Context, input, output string) error
}

// Process runs an external binary, ffmpeg by default
type Process struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

// NewProcess creates a transcoder for binary with an argument template
// containing the input and output placeholders
func NewProcess(binary string, args []string, timeout time.Duration) *Process {
	return &Process{Binary: binary, Args: args, Timeout: timeout}
}

func (p *Process) args(input, output string) []string {
	args := make([]string, len(p.Args))
	for i, arg := range p.Args {
		arg = strings.ReplaceAll(arg, InputPlaceholder, input)
		args[i] = strings.ReplaceAll(arg, OutputPlaceholder, output)
	}
	return args
}

// Transcode runs the process and kills it once Timeout elapses
func (p *Process) Transcode(ctx context.Context, input, output string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	stderr := &tailBuffer{limit: stderrTail}

	cmd := exec.CommandContext(ctx, p.Binary, p.args(input, output)...)
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscoderNotStarted, err)
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTranscoderTimeout, p.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
	}

	return fmt.Errorf("transcoder failed: %w", err)
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
