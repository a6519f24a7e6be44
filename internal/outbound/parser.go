// Package outbound converts a plugin handler's return value into one or
// more gateway actions, inferring the origin (private vs. group, message
// vs. notice reply) from the raw event the handler was invoked for.
package outbound

import (
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
)

// Sender is the minimal surface the parser needs from the Gateway Client.
type Sender interface {
	Send(action string, body map[string]any)
}

// Parse dispatches response according to its runtime shape: a string
// infers its destination from raw's post_type/message_type (or, for
// notices, from whichever of group_id/user_id is present); a
// {action, data} map is sent verbatim; a list is parsed element-by-element,
// skipping invalid items; anything else is logged and dropped.
func Parse(sender Sender, response any, kind eventkind.Kind, raw eventkind.RawEvent) {
	switch v := response.(type) {
	case nil:
		return

	case string:
		parseString(sender, v, kind, raw)

	case map[string]any:
		parseActionData(sender, v)

	case []any:
		for i, item := range v {
			switch item.(type) {
			case string, map[string]any:
				Parse(sender, item, kind, raw)
			default:
				logger.Dispatch().Warn().Int("index", i).
					Msg("outbound: list response contains invalid item, skipping")
			}
		}

	default:
		logger.Dispatch().Warn().Msg("outbound: unsupported response type, expected string, map, or list")
	}
}

func parseString(sender Sender, text string, kind eventkind.Kind, raw eventkind.RawEvent) {
	postType := str(raw["post_type"])

	switch postType {
	case "message":
		switch str(raw["message_type"]) {
		case "private":
			sender.Send("send_private_msg", map[string]any{
				"user_id": raw["user_id"],
				"message": []any{textSegment(text)},
			})
		case "group":
			sender.Send("send_group_msg", map[string]any{
				"group_id": raw["group_id"],
				"message":  []any{textSegment(text)},
			})
		}

	case "notice":
		if kind == eventkind.NoticeBotOffline {
			logger.Dispatch().Warn().Msg("outbound: cannot send message for NOTICE_BOT_OFFLINE")
			return
		}

		groupID, hasGroup := nonEmpty(raw["group_id"])
		userID, hasUser := nonEmpty(raw["user_id"])

		switch {
		case hasGroup:
			sender.Send("send_group_msg", map[string]any{
				"group_id": groupID,
				"message":  []any{textSegment(text)},
			})
		case hasUser:
			sender.Send("send_private_msg", map[string]any{
				"user_id": userID,
				"message": []any{textSegment(text)},
			})
		default:
			logger.Dispatch().Warn().Str("kind", string(kind)).
				Msg("outbound: notice event has neither group_id nor user_id")
		}

	default:
		logger.Dispatch().Warn().Str("post_type", postType).Msg("outbound: string response not supported for this post_type")
	}
}

func parseActionData(sender Sender, response map[string]any) {
	action, ok := response["action"].(string)
	if !ok {
		logger.Dispatch().Warn().Msg("outbound: dict response missing string 'action'")
		return
	}
	data, ok := response["data"].(map[string]any)
	if !ok {
		logger.Dispatch().Warn().Msg("outbound: dict response missing dict 'data'")
		return
	}
	sender.Send(action, data)
}

func textSegment(text string) map[string]any {
	return map[string]any{"type": "text", "data": map[string]any{"text": text}}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func nonEmpty(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if f, ok := v.(float64); ok {
		return v, f != 0
	}
	if s, ok := v.(string); ok {
		return v, s != ""
	}
	return v, true
}
