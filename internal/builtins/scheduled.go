package builtins

import (
	"fmt"
	"time"

	"github.com/askr-bot/askr/internal/plugins"
)

func init() {
	plugins.RegisterBuiltin("scheduled", plugins.Manifest{
		"UNCONDITIONAL": []any{"ScheduledTask", float64(2)},
	}, map[string]plugins.HandlerFunc{
		"ScheduledTask": scheduledTask,
	})
}

// scheduledTask fires every 2 minutes via the minute scheduler's modulus
// selection and emits a declarative outbound reply, the same shape
// test_plugin4 produces.
func scheduledTask(ctx *plugins.HandlerContext) (any, error) {
	ts, _ := ctx.RawEvent["time"].(float64)
	when := time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04:05")

	return map[string]any{
		"action": "send_private_msg",
		"data": map[string]any{
			"user_id": float64(999999999),
			"message": []any{map[string]any{"type": "text", "data": map[string]any{
				"text": fmt.Sprintf("[scheduled] tick at %s", when),
			}}},
		},
	}, nil
}
