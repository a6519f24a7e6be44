package plugins

import (
	"fmt"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
)

// HandlerContext is the single aggregate argument every handler receives.
// SimpleEvent is nil outside private/group message kinds; Bot is always
// present.
type HandlerContext struct {
	SimpleEvent *eventkind.SimpleEvent
	RawEvent    eventkind.RawEvent
	Bot         *BotContext
}

// HandlerFunc is the signature every plugin-exported handler must satisfy.
type HandlerFunc func(ctx *HandlerContext) (any, error)

// ManifestEntry is one binding in a plugin's manifest: the symbol name the
// plugin exports, plus (for UNCONDITIONAL) the minute-modulus interval.
type ManifestEntry struct {
	SymbolName string
	Interval   int // only meaningful for UNCONDITIONAL; 0 means "not set"
}

// parseManifestValue accepts either a bare string ("handlerName") or a
// two-element [name, interval] pair, as produced by YAML/JSON unmarshaling
// of a plugin's declared manifest.
func parseManifestValue(key string, value any) (ManifestEntry, error) {
	switch v := value.(type) {
	case string:
		return ManifestEntry{SymbolName: v}, nil
	case []any:
		if len(v) != 2 {
			return ManifestEntry{}, fmt.Errorf("manifest: %s: expected [name, interval] pair, got %d elements", key, len(v))
		}
		name, ok := v[0].(string)
		if !ok {
			return ManifestEntry{}, fmt.Errorf("manifest: %s: first element must be a string name", key)
		}
		interval, err := toInt(v[1])
		if err != nil {
			return ManifestEntry{}, fmt.Errorf("manifest: %s: interval: %w", key, err)
		}
		if interval < 1 || interval > 60 {
			return ManifestEntry{}, fmt.Errorf("manifest: %s: interval %d out of range [1,60]", key, interval)
		}
		return ManifestEntry{SymbolName: name, Interval: interval}, nil
	default:
		return ManifestEntry{}, fmt.Errorf("manifest: %s: unsupported value type %T", key, value)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// Manifest is the raw declaration a plugin exports: event kind name (or
// "INITIALIZER"/"UNCONDITIONAL") to handler reference.
type Manifest map[string]any

// Parse validates and normalizes a raw manifest into per-kind entries plus
// the two special-key entries. A malformed entry never fails the manifest
// as a whole: it is logged and dropped, leaving every other entry in the
// manifest to register normally — the same per-entry tolerance the legacy
// framework applied key by key.
func (m Manifest) Parse() (byKind map[eventkind.Kind]ManifestEntry, initializer *ManifestEntry, unconditional *ManifestEntry) {
	byKind = make(map[eventkind.Kind]ManifestEntry)

	for key, value := range m {
		switch key {
		case "INITIALIZER":
			entry, perr := parseManifestValue(key, value)
			if perr != nil {
				logger.Plugins().Error().Err(perr).Msg("manifest: dropping malformed INITIALIZER entry")
				continue
			}
			initializer = &entry

		case "UNCONDITIONAL":
			entry, perr := parseManifestValue(key, value)
			if perr != nil {
				logger.Plugins().Error().Err(perr).Msg("manifest: dropping malformed UNCONDITIONAL entry")
				continue
			}
			if entry.Interval == 0 {
				entry.Interval = 1
			}
			unconditional = &entry

		default:
			kind := eventkind.Kind(key)
			if !eventkind.IsDispatchable(kind) {
				logger.Plugins().Error().Str("key", key).Msg("manifest: dropping entry bound to unrecognized event kind")
				continue
			}
			entry, perr := parseManifestValue(key, value)
			if perr != nil {
				logger.Plugins().Error().Err(perr).Msg("manifest: dropping malformed entry")
				continue
			}
			byKind[kind] = entry
		}
	}

	return byKind, initializer, unconditional
}
