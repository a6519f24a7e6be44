package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/askr-bot/askr/internal/builtins"
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/stretchr/testify/require"
)

var simpleEventFixture = eventkind.SimpleEvent{UserID: float64(1), TextMessage: "/test_sleep"}

// buildWorker compiles cmd/askr-worker for the calling test so Runner can
// spawn a real process image, the same way the framework's own worker is
// deployed — a fork of the live test binary would defeat the point of
// isolation.
func buildWorker(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "askr-worker")
	cmd := exec.Command("go", "build", "-o", bin, "github.com/askr-bot/askr/cmd/askr-worker")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Skipf("skipping: could not build askr-worker (no Go toolchain in this environment): %v\n%s", err, out)
	}
	return bin
}

func TestRunnerSuccessfulInvocation(t *testing.T) {
	bin := buildWorker(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	r := NewRunner(bin, "http://127.0.0.1:0", dbPath, Caps{
		MaxCPUSeconds:  3,
		MaxWallSeconds: 5,
		MemoryLimitMB:  256,
		PollInterval:   50 * time.Millisecond,
	})

	h := plugins.BoundHandler{PluginName: "diag", SymbolName: "DiagMessagePrivate"}
	outcome := r.Run(context.Background(), h, nil, map[string]any{"post_type": "message"})
	require.Equal(t, OutcomeOK, outcome.Kind)
	require.Contains(t, outcome.Value, "MESSAGE_PRIVATE")
}

func TestRunnerWallCapBreach(t *testing.T) {
	bin := buildWorker(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	r := NewRunner(bin, "http://127.0.0.1:0", dbPath, Caps{
		MaxCPUSeconds:  3,
		MaxWallSeconds: 1,
		MemoryLimitMB:  256,
		PollInterval:   50 * time.Millisecond,
	})

	h := plugins.BoundHandler{PluginName: "comprehensive", SymbolName: "ComprehensiveHandler"}
	simple := &simpleEventFixture
	outcome := r.Run(context.Background(), h, simple, map[string]any{"post_type": "message"})
	require.Equal(t, OutcomeWallCap, outcome.Kind)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
