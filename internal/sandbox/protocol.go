// Package sandbox runs a single plugin handler in an isolated worker
// process and enforces CPU, wall-clock, and memory caps against it.
package sandbox

import "github.com/askr-bot/askr/internal/eventkind"

// Request is the JSON payload the host writes to its spawned worker's
// stdin. The worker re-resolves the handler itself — from the built-in
// registry compiled into its own binary, or by re-opening SOPath — rather
// than receiving any live reference from the host.
type Request struct {
	InvocationID  string                 `json:"invocation_id"`
	PluginName    string                 `json:"plugin_name"`
	SymbolName    string                 `json:"symbol_name"`
	SOPath        string                 `json:"so_path,omitempty"`
	SimpleEvent   *eventkind.SimpleEvent `json:"simple_event,omitempty"`
	RawEvent      eventkind.RawEvent     `json:"raw_event"`
	GatewayURL    string                 `json:"gateway_url"`
	DatabaseFile  string                 `json:"database_file"`
	MemoryLimitMB int64                  `json:"memory_limit_mb"`
}

// Response is the JSON payload the worker writes to its stdout before
// exiting.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
