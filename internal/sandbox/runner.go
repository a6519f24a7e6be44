package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Caps describes the resource ceiling a single handler invocation must stay
// within, and how often the host polls the child to check.
type Caps struct {
	MaxCPUSeconds  float64
	MaxWallSeconds float64
	MemoryLimitMB  int64
	PollInterval   time.Duration
}

// OutcomeKind classifies how an invocation ended.
type OutcomeKind string

const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeError     OutcomeKind = "error"
	OutcomeCPUCap    OutcomeKind = "cpu_cap"
	OutcomeWallCap   OutcomeKind = "wall_cap"
	OutcomeMemoryCap OutcomeKind = "memory_cap"
)

// Outcome is the structured result of running a handler through the
// sandbox: either a successful return value, a handler-raised error, or a
// cap breach that forced termination.
type Outcome struct {
	PluginName string
	SymbolName string
	Kind       OutcomeKind
	Value      any
	Err        error
}

// Runner spawns one worker process per invocation.
type Runner struct {
	workerBinary string
	gatewayURL   string
	databaseFile string
	caps         Caps
}

// NewRunner builds a Runner that spawns workerBinary for every Run call.
func NewRunner(workerBinary, gatewayURL, databaseFile string, caps Caps) *Runner {
	if caps.PollInterval <= 0 {
		caps.PollInterval = 100 * time.Millisecond
	}
	return &Runner{
		workerBinary: workerBinary,
		gatewayURL:   gatewayURL,
		databaseFile: databaseFile,
		caps:         caps,
	}
}

// Run executes one handler invocation in a freshly spawned worker process,
// monitoring it at the configured poll interval and terminating it (SIGTERM
// then, after a 1s grace period, SIGKILL) on any cap breach.
func (r *Runner) Run(ctx context.Context, h plugins.BoundHandler, simple *eventkind.SimpleEvent, raw eventkind.RawEvent) Outcome {
	invocationID := uuid.NewString()
	req := Request{
		InvocationID:  invocationID,
		PluginName:    h.PluginName,
		SymbolName:    h.SymbolName,
		SOPath:        h.SOPath,
		SimpleEvent:   simple,
		RawEvent:      raw,
		GatewayURL:    r.gatewayURL,
		DatabaseFile:  r.databaseFile,
		MemoryLimitMB: r.caps.MemoryLimitMB,
	}
	log := logger.Sandbox().With().Str("invocation_id", invocationID).Str("plugin", h.PluginName).Str("symbol", h.SymbolName).Logger()

	cmd := exec.CommandContext(ctx, r.workerBinary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("sandbox: stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("sandbox: stdout pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("sandbox: spawn worker: %w", err)}
	}

	if err := json.NewEncoder(stdin).Encode(req); err != nil {
		_ = cmd.Process.Kill()
		return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("sandbox: write request: %w", err)}
	}
	stdin.Close()

	type readResult struct {
		resp Response
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var resp Response
		var decodeErr error
		if scanner.Scan() {
			decodeErr = json.Unmarshal(scanner.Bytes(), &resp)
		} else {
			decodeErr = scanner.Err()
			if decodeErr == nil {
				decodeErr = fmt.Errorf("worker produced no output")
			}
		}
		resultCh <- readResult{resp: resp, err: decodeErr}
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	start := time.Now()
	ticker := time.NewTicker(r.caps.PollInterval)
	defer ticker.Stop()

	log.Debug().Msg("invocation started")

	var once sync.Once
	terminate := func() {
		once.Do(func() {
			terminateWorker(cmd, log)
		})
	}

	for {
		select {
		case res := <-resultCh:
			<-waitCh
			if res.err != nil {
				return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("sandbox: decode worker response: %w", res.err)}
			}
			if res.resp.Error != "" {
				return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeError, Err: fmt.Errorf("%s", res.resp.Error)}
			}
			return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeOK, Value: res.resp.Result}

		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			if elapsed > r.caps.MaxWallSeconds {
				terminate()
				<-waitCh
				return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeWallCap, Err: fmt.Errorf("sandbox: wall-clock cap (%.1fs) exceeded", r.caps.MaxWallSeconds)}
			}
			if usage, err := readProcUsage(cmd.Process.Pid); err == nil {
				if usage.cpuSeconds > r.caps.MaxCPUSeconds {
					terminate()
					<-waitCh
					return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeCPUCap, Err: fmt.Errorf("sandbox: CPU-time cap (%.1fs) exceeded", r.caps.MaxCPUSeconds)}
				}
				if r.caps.MemoryLimitMB > 0 && usage.rssMB > r.caps.MemoryLimitMB {
					terminate()
					<-waitCh
					return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeMemoryCap, Err: fmt.Errorf("sandbox: memory cap (%dMB) exceeded", r.caps.MemoryLimitMB)}
				}
			}

		case <-ctx.Done():
			terminate()
			<-waitCh
			return Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: OutcomeWallCap, Err: ctx.Err()}
		}
	}
}

// terminateWorker sends SIGTERM, gives the worker 1s to exit, then SIGKILL —
// mirroring the graceful-then-forced shutdown the framework always applies
// on a cap breach.
func terminateWorker(cmd *exec.Cmd, log zerolog.Logger) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		log.Warn().Int("pid", cmd.Process.Pid).Msg("worker ignored SIGTERM, sending SIGKILL")
		_ = cmd.Process.Kill()
	}
}

type procUsage struct {
	cpuSeconds float64
	rssMB      int64
}

func readProcUsage(pid int) (procUsage, error) {
	cpu, err := readProcCPUSeconds(pid)
	if err != nil {
		return procUsage{}, err
	}
	rss, err := readProcRSSMB(pid)
	if err != nil {
		return procUsage{}, err
	}
	return procUsage{cpuSeconds: cpu, rssMB: rss}, nil
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readProcCPUSeconds(pid int) (float64, error) {
	data, err := readFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// Fields after the closing paren of the (comm) field are space separated
	// and position-stable; utime/stime are fields 14/15 counting from 1.
	idx := strings.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return 0, fmt.Errorf("sandbox: malformed /proc/%d/stat", pid)
	}
	fields := strings.Fields(data[idx+2:])
	if len(fields) < 13 {
		return 0, fmt.Errorf("sandbox: short /proc/%d/stat", pid)
	}
	utime, err1 := strconv.ParseInt(fields[11], 10, 64)
	stime, err2 := strconv.ParseInt(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, fmt.Errorf("sandbox: parse /proc/%d/stat cpu fields", pid)
	}
	clockTicks := float64(100) // USER_HZ; 100 on virtually every Linux config
	return float64(utime+stime) / clockTicks, nil
}

func readProcRSSMB(pid int) (int64, error) {
	data, err := readFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(data, "\n") {
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			kb, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				continue
			}
			return kb / 1024, nil
		}
	}
	return 0, fmt.Errorf("sandbox: VmRSS not found in /proc/%d/status", pid)
}
