package builtins

import (
	"fmt"
	"strings"
	"time"

	"github.com/askr-bot/askr/internal/history"
	"github.com/askr-bot/askr/internal/plugins"
)

func init() {
	plugins.RegisterBuiltin("comprehensive", plugins.Manifest{
		"MESSAGE_PRIVATE": "ComprehensiveHandler",
	}, map[string]plugins.HandlerFunc{
		"ComprehensiveHandler": comprehensiveHandler,
	})
}

// comprehensiveHandler exercises every return shape, every BotContext
// capability, and the CPU-time and wall-clock sandbox caps (no command
// targets the memory cap), branching on the command text — the
// same role test_plugin2 plays against the sandbox and outbound parser.
func comprehensiveHandler(ctx *plugins.HandlerContext) (any, error) {
	if ctx.SimpleEvent == nil {
		return nil, nil
	}
	message := strings.TrimSpace(ctx.SimpleEvent.TextMessage)
	userID := ctx.SimpleEvent.UserID

	switch message {
	case "/test_str":
		return "[comprehensive] string reply", nil

	case "/test_dict":
		return map[string]any{
			"action": "send_private_msg",
			"data": map[string]any{
				"user_id": userID,
				"message": []any{map[string]any{"type": "text", "data": map[string]any{"text": "[comprehensive] dict reply"}}},
			},
		}, nil

	case "/test_list":
		return []any{
			"[comprehensive] list reply 1",
			map[string]any{
				"action": "send_private_msg",
				"data": map[string]any{
					"user_id": userID,
					"message": []any{map[string]any{"type": "text", "data": map[string]any{"text": "[comprehensive] list reply 2"}}},
				},
			},
		}, nil

	case "/test_invalid":
		return 12345, nil // not a string/dict/list/nil — the Outbound Parser must flag this

	case "/test_config_write":
		if err := ctx.Bot.ConfigWrite(map[string]any{"key": "value"}); err != nil {
			return nil, err
		}
		return "[comprehensive] config write complete", nil

	case "/test_config_read":
		cfg := ctx.Bot.ConfigRead()
		return fmt.Sprintf("[comprehensive] config: %v", cfg), nil

	case "/test_history":
		events := ctx.Bot.History(history.QueryIdentifier{Type: "private", UserID: userID}, 5)
		return fmt.Sprintf("[comprehensive] history: %d records", len(events)), nil

	case "/test_api":
		_, err := ctx.Bot.ApiCall("test_api", map[string]any{"test_param": "test_value"})
		if err != nil {
			return "[comprehensive] api call failed", nil
		}
		return "[comprehensive] api call succeeded", nil

	case "/test_exception":
		return nil, fmt.Errorf("comprehensive: intentional test exception")

	case "/test_cpu":
		primesFound := 0
		n := 100000
		for primesFound < 10_000_000 {
			if isPrime(n) {
				primesFound++
			}
			n++
		}
		return fmt.Sprintf("[comprehensive] found %d primes", primesFound), nil

	case "/test_sleep":
		time.Sleep(60 * time.Second)
		return "[comprehensive] this should never send", nil

	default:
		return nil, nil
	}
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}
