package plugins

import (
	"testing"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx *HandlerContext) (any, error) {
	return "ok", nil
}

func TestRegisterAndLookupWithInheritance(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{
		"MESSAGE_GROUP":         "OnGroup",
		"MESSAGE_GROUP_MENTION": "OnGroup",
	}
	handlers := map[string]HandlerFunc{"OnGroup": echoHandler}

	err := reg.Register("dice", manifest, func(s string) (HandlerFunc, bool) {
		fn, ok := handlers[s]
		return fn, ok
	})
	require.NoError(t, err)

	// MESSAGE_GROUP_MENTION inherits MESSAGE_GROUP, but the same symbol is
	// bound under both keys — it must fire only once.
	got := reg.Lookup(eventkind.MessageGroupMention)
	assert.Len(t, got, 1)
}

func TestRegisterUnresolvedSymbolDropsOnlyThatEntry(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{"MESSAGE_PRIVATE": "Missing", "MESSAGE_GROUP": "OnGroup"}
	handlers := map[string]HandlerFunc{"OnGroup": echoHandler}
	err := reg.Register("broken", manifest, func(s string) (HandlerFunc, bool) {
		fn, ok := handlers[s]
		return fn, ok
	})
	require.NoError(t, err)

	assert.Empty(t, reg.Lookup(eventkind.MessagePrivate))
	assert.Len(t, reg.Lookup(eventkind.MessageGroup), 1)
	assert.Contains(t, reg.Plugins(), "broken")
}

func TestUnconditionalIntervalValidationDropsEntry(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{"UNCONDITIONAL": []any{"Tick", float64(61)}, "MESSAGE_PRIVATE": "OnMsg"}
	handlers := map[string]HandlerFunc{"Tick": echoHandler, "OnMsg": echoHandler}
	err := reg.Register("clock", manifest, func(s string) (HandlerFunc, bool) {
		fn, ok := handlers[s]
		return fn, ok
	})
	require.NoError(t, err)

	assert.False(t, reg.HasUnconditionals())
	assert.Len(t, reg.Lookup(eventkind.MessagePrivate), 1)
}

func TestManifestKeyMustBeRecognizedEventKind(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{"MESAGE_PRIVATE": "Typo", "MESSAGE_PRIVATE": "OnMsg"}
	handlers := map[string]HandlerFunc{"Typo": echoHandler, "OnMsg": echoHandler}
	err := reg.Register("typo", manifest, func(s string) (HandlerFunc, bool) {
		fn, ok := handlers[s]
		return fn, ok
	})
	require.NoError(t, err)

	assert.Len(t, reg.Lookup(eventkind.MessagePrivate), 1)
	assert.Empty(t, reg.Lookup(eventkind.Kind("MESAGE_PRIVATE")))
}

func TestUnconditionalModulusSelection(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{"UNCONDITIONAL": []any{"Tick", float64(15)}}
	err := reg.Register("clock", manifest, func(s string) (HandlerFunc, bool) { return echoHandler, true })
	require.NoError(t, err)

	assert.Len(t, reg.Unconditionals(30), 1)
	assert.Len(t, reg.Unconditionals(7), 0)
}

func TestPurgeRemovesAllOfAPlugin(t *testing.T) {
	reg := NewRegistry()
	manifest := Manifest{"INITIALIZER": "Setup", "MESSAGE_PRIVATE": "OnMsg"}
	handlers := map[string]HandlerFunc{"Setup": echoHandler, "OnMsg": echoHandler}
	err := reg.Register("plugin1", manifest, func(s string) (HandlerFunc, bool) {
		fn, ok := handlers[s]
		return fn, ok
	})
	require.NoError(t, err)

	reg.Purge("plugin1")
	assert.Empty(t, reg.Initializers())
	assert.Empty(t, reg.Lookup(eventkind.MessagePrivate))
	assert.Empty(t, reg.Plugins())
}
