package builtins

import (
	"fmt"

	"github.com/askr-bot/askr/internal/plugins"
)

func init() {
	plugins.RegisterBuiltin("failinit", plugins.Manifest{
		"INITIALIZER":    "FailingInit",
		"MESSAGE_PRIVATE": "NeverRuns",
	}, map[string]plugins.HandlerFunc{
		"FailingInit": failingInit,
		"NeverRuns":   neverRuns,
	})
}

// failingInit always errors, exercising the bootstrap path that purges a
// plugin from the registry when its INITIALIZER fails.
func failingInit(ctx *plugins.HandlerContext) (any, error) {
	return nil, fmt.Errorf("failinit: intentional initializer failure")
}

func neverRuns(ctx *plugins.HandlerContext) (any, error) {
	return "[failinit] this should never send — the plugin should have been purged", nil
}
