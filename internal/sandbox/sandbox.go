// Package sandbox runs one code submission in an isolated interpreter
// process under a wall-clock budget. The temporary file backing a run is
// removed on every exit path: success, non-zero exit, timeout, spawn
// error, and write error.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/metrics"
)

// User-facing result strings. The platform fronts a Traditional Chinese
// classroom UI, so these mirror the client's expected wording.
const (
	msgInterpreterUnavailable = "❌ 服務器環境錯誤：Python解釋器不可用"
	msgTimedOut               = "❌ 執行超時（超過10秒），程式已被終止"
	msgNoOutput               = "程式執行完成（無輸出）\n💡 提示：如果想要看到輸出結果，可以嘗試：\n• 使用 print() 函數：print(\"Hello World\")\n• 顯示變數值：print(變數名稱)\n• 顯示計算結果：print(5 + 3)\n• 列印內容：print(\"您的訊息\")"
	pathPlaceholder           = `File "<您的代碼>"`
)

// tempFileRef matches interpreter tracebacks that name the temp file.
var tempFileRef = regexp.MustCompile(`File ".*?coderoom-.*?\.py"`)

// Result is the outcome of one sandbox run.
type Result struct {
	Success bool
	Output  string
}

// Runner executes code submissions with a fixed interpreter and budget.
type Runner struct {
	interpreter string
	timeout     time.Duration
	dir         string
	logger      zerolog.Logger
}

// New creates a Runner. An empty dir falls back to the OS temp directory.
func New(interpreter string, timeout time.Duration, dir string, logger zerolog.Logger) *Runner {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Runner{
		interpreter: interpreter,
		timeout:     timeout,
		dir:         dir,
		logger:      logger.With().Str("component", "sandbox").Logger(),
	}
}

// Execute runs one code submission to completion. It never returns an
// error: every failure mode is folded into the Result so it can flow back
// through the broadcast path unchanged.
func (r *Runner) Execute(ctx context.Context, code string) Result {
	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	start := time.Now()
	defer func() {
		metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	}()

	// Pre-flight: confirm the interpreter exists before touching the
	// filesystem.
	if err := r.preflight(ctx); err != nil {
		r.logger.Warn().Err(err).Str("interpreter", r.interpreter).Msg("interpreter unavailable")
		metrics.ExecutionsTotal.WithLabelValues("unavailable").Inc()
		return Result{Success: false, Output: msgInterpreterUnavailable}
	}

	tmp, err := os.CreateTemp(r.dir, "coderoom-*.py")
	if err != nil {
		r.logger.Error().Err(err).Msg("temp file creation failed")
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return Result{Success: false, Output: fmt.Sprintf("❌ 系統錯誤: %v", err)}
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		r.logger.Error().Err(err).Msg("temp file write failed")
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return Result{Success: false, Output: fmt.Sprintf("❌ 系統錯誤: %v", err)}
	}
	if err := tmp.Close(); err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return Result{Success: false, Output: fmt.Sprintf("❌ 系統錯誤: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.interpreter, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Anything the interpreter spawns inherits the output pipes and would
	// keep Run blocked long after the budget expires. The run gets its own
	// process group, cancellation kills the whole group, and Wait gives up
	// on the pipes shortly after the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn().Dur("budget", r.timeout).Msg("run killed on timeout")
		metrics.ExecutionsTotal.WithLabelValues("timeout").Inc()
		return Result{Success: false, Output: msgTimedOut}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("程式執行失敗（退出代碼: %d）", exitErr.ExitCode())
			}
			metrics.ExecutionsTotal.WithLabelValues("error").Inc()
			return Result{Success: false, Output: r.sanitize(msg, path)}
		}
		r.logger.Error().Err(runErr).Msg("interpreter spawn failed")
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return Result{Success: false, Output: fmt.Sprintf("❌ 執行錯誤: %v", runErr)}
	}

	out := strings.TrimSpace(stdout.String())
	metrics.ExecutionsTotal.WithLabelValues("success").Inc()
	if out == "" {
		return Result{Success: true, Output: msgNoOutput}
	}
	return Result{Success: true, Output: out}
}

// preflight spawns the interpreter with a version check.
func (r *Runner) preflight(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, r.interpreter, "--version")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// sanitize strips the temp file's absolute path from diagnostic text so
// error output never leaks the server filesystem layout.
func (r *Runner) sanitize(msg, path string) string {
	msg = strings.ReplaceAll(msg, path, "<您的代碼>")
	return tempFileRef.ReplaceAllString(msg, pathPlaceholder)
}
