// Package builtins holds compiled-in plugins: a small diagnostic fleet used
// by the sandbox test suite, registered the same way a
// dynamically loaded plugin would be.
package builtins

import "github.com/askr-bot/askr/internal/plugins"

func init() {
	plugins.RegisterBuiltin("diag", plugins.Manifest{
		"MESSAGE_PRIVATE":      "DiagMessagePrivate",
		"MESSAGE_GROUP":        "DiagMessageGroup",
		"MESSAGE_GROUP_MENTION": "DiagMessageGroupMention",
		"MESSAGE_GROUP_BOT":    "DiagMessageGroupBot",
		"NOTICE_FRIEND_ADD":    "DiagNoticeFriendAdd",
		"NOTICE_POKE":          "DiagNoticePoke",
		"REQUEST_FRIEND":       "DiagRequestFriend",
	}, map[string]plugins.HandlerFunc{
		"DiagMessagePrivate":      diagHandler("MESSAGE_PRIVATE"),
		"DiagMessageGroup":        diagHandler("MESSAGE_GROUP"),
		"DiagMessageGroupMention": diagHandler("MESSAGE_GROUP_MENTION"),
		"DiagMessageGroupBot":     diagHandler("MESSAGE_GROUP_BOT"),
		"DiagNoticeFriendAdd":     diagHandler("NOTICE_FRIEND_ADD"),
		"DiagNoticePoke":          diagHandler("NOTICE_POKE"),
		"DiagRequestFriend":       diagHandler("REQUEST_FRIEND"),
	})
}

func diagHandler(kind string) plugins.HandlerFunc {
	return func(ctx *plugins.HandlerContext) (any, error) {
		return "[diag] " + kind + " received", nil
	}
}
