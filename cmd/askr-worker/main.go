// Command askr-worker is the isolated subprocess a Sandbox Runner spawns to
// execute exactly one plugin handler invocation. It shares no memory with
// the host process: it decodes its Request from stdin, resolves the
// handler fresh from its own process image, and writes a single Response
// to stdout before exiting.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	_ "github.com/askr-bot/askr/internal/builtins"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/askr-bot/askr/internal/sandbox"
)

func main() {
	var req sandbox.Request
	if err := json.NewDecoder(bufio.NewReader(os.Stdin)).Decode(&req); err != nil {
		writeResponse(sandbox.Response{Error: fmt.Sprintf("worker: decode request: %v", err)})
		return
	}

	if req.MemoryLimitMB > 0 {
		limit := uint64(req.MemoryLimitMB) * 1024 * 1024
		rlimit := syscall.Rlimit{Cur: limit, Max: limit}
		if err := syscall.Setrlimit(syscall.RLIMIT_AS, &rlimit); err != nil {
			writeResponse(sandbox.Response{Error: fmt.Sprintf("worker: setrlimit: %v", err)})
			return
		}
	}

	handler, err := resolveHandler(req)
	if err != nil {
		writeResponse(sandbox.Response{Error: err.Error()})
		return
	}

	bot, err := plugins.NewBotContext(req.PluginName, req.GatewayURL, req.DatabaseFile)
	if err != nil {
		writeResponse(sandbox.Response{Error: fmt.Sprintf("worker: bot context: %v", err)})
		return
	}
	defer bot.Close()

	result, err := handler(&plugins.HandlerContext{
		SimpleEvent: req.SimpleEvent,
		RawEvent:    req.RawEvent,
		Bot:         bot,
	})
	if err != nil {
		writeResponse(sandbox.Response{Error: err.Error()})
		return
	}

	writeResponse(sandbox.Response{Result: result})
}

func resolveHandler(req sandbox.Request) (plugins.HandlerFunc, error) {
	if req.SOPath != "" {
		fn, err := plugins.DynamicHandler(req.SOPath, req.SymbolName)
		if err != nil {
			return nil, fmt.Errorf("worker: %w", err)
		}
		return fn, nil
	}
	fn, ok := plugins.BuiltinHandler(req.PluginName, req.SymbolName)
	if !ok {
		return nil, fmt.Errorf("worker: built-in handler %s#%s not found", req.PluginName, req.SymbolName)
	}
	return fn, nil
}

func writeResponse(resp sandbox.Response) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "worker: failed to write response: %v\n", err)
	}
}
