package plugins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/askr-bot/askr/internal/history"
)

// BotContext is the capability bundle a handler receives: outbound API
// calls, event history lookups, and per-plugin configuration. It is always
// constructed fresh inside the worker process against its own short-lived
// database connection and HTTP client — it never proxies back through the
// host, since every capability it exposes is independently reconstructible
// from the config handed to the worker at spawn time.
type BotContext struct {
	PluginName string
	GatewayURL string
	store      *history.Store
	httpClient *http.Client
}

// NewBotContext opens its own connection to dbPath; callers must Close it
// when the handler invocation completes.
func NewBotContext(pluginName, gatewayURL, dbPath string) (*BotContext, error) {
	store, err := history.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("botcontext: open history store: %w", err)
	}
	return &BotContext{
		PluginName: pluginName,
		GatewayURL: gatewayURL,
		store:      store,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Close releases the context's database connection.
func (b *BotContext) Close() error {
	return b.store.Close()
}

// ApiCall posts {action, data} directly to the gateway, with a fixed 5s
// timeout and no retry — retries are the Gateway Client's job for dispatcher
// output, not a handler-initiated side call.
func (b *BotContext) ApiCall(action string, data map[string]any) (map[string]any, error) {
	if action == "" {
		return nil, fmt.Errorf("botcontext: api_call: action must not be empty")
	}
	body, err := json.Marshal(map[string]any{"action": action, "params": data})
	if err != nil {
		return nil, fmt.Errorf("botcontext: api_call: marshal: %w", err)
	}

	resp, err := b.httpClient.Post(b.GatewayURL+"/"+action, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("botcontext: api_call: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("botcontext: api_call: decode response: %w", err)
	}
	return result, nil
}

// History returns up to count past events for the given scope (count == 0
// means unlimited), reusing the History Store's own query semantics.
func (b *BotContext) History(id history.QueryIdentifier, count int) []map[string]any {
	return b.store.Query(id, count)
}

// ConfigRead returns this plugin's stored configuration blob.
func (b *BotContext) ConfigRead() map[string]any {
	return b.store.PluginConfigRead(b.PluginName)
}

// ConfigWrite replaces this plugin's stored configuration blob.
func (b *BotContext) ConfigWrite(cfg map[string]any) error {
	return b.store.PluginConfigWrite(b.PluginName, cfg)
}
