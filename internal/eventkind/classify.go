package eventkind

import (
	"fmt"

	"github.com/askr-bot/askr/internal/logger"
)

// RawEvent is the decoded JSON body posted by the messaging gateway.
type RawEvent map[string]any

func str(v any) string {
	s, _ := v.(string)
	return s
}

func segments(raw RawEvent) []map[string]any {
	list, _ := raw["message"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if seg, ok := item.(map[string]any); ok {
			out = append(out, seg)
		}
	}
	return out
}

func segmentData(seg map[string]any) map[string]any {
	data, _ := seg["data"].(map[string]any)
	return data
}

// analyzeGroupMessage decides among MESSAGE_GROUP, MESSAGE_GROUP_MENTION and
// MESSAGE_GROUP_BOT. An @-mention of the bot's own id takes priority over
// everything else; a command-prefix character (".", "/", "\\") leading the
// first text segment is checked only when no mention was found.
func analyzeGroupMessage(raw RawEvent) Kind {
	selfID := fmt.Sprintf("%v", raw["self_id"])
	segs := segments(raw)

	for _, seg := range segs {
		if str(seg["type"]) == "at" {
			if fmt.Sprintf("%v", segmentData(seg)["qq"]) == selfID {
				return MessageGroupMention
			}
		}
	}

	for _, seg := range segs {
		if str(seg["type"]) == "text" {
			text := str(segmentData(seg)["text"])
			trimmed := trimLeftSpace(text)
			if trimmed != "" {
				switch trimmed[0] {
				case '.', '/', '\\':
					return MessageGroupBot
				}
			}
			break
		}
	}

	return MessageGroup
}

func trimLeftSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return s[i:]
}

// Classify maps a raw event onto the closed Kind enumeration via nested
// post_type -> subtype -> sub_subtype discrimination. Unrecognized shapes
// classify as Unexpected and log the attempted discriminators for
// diagnosis.
func Classify(raw RawEvent) Kind {
	switch str(raw["post_type"]) {
	case "message":
		switch str(raw["message_type"]) {
		case "private":
			return MessagePrivate
		case "group":
			return analyzeGroupMessage(raw)
		}

	case "message_sent":
		switch str(raw["message_type"]) {
		case "private":
			return MessageSentPrivate
		case "group":
			return MessageSentGroup
		}

	case "notice":
		switch str(raw["notice_type"]) {
		case "friend_add":
			return NoticeFriendAdd
		case "friend_recall":
			return NoticeFriendRecall
		case "group_recall":
			return NoticeGroupRecall
		case "group_increase":
			return NoticeGroupIncrease
		case "group_decrease":
			return NoticeGroupDecrease
		case "group_admin":
			return NoticeGroupAdmin
		case "group_ban":
			return NoticeGroupBan
		case "group_upload":
			return NoticeGroupUpload
		case "group_card":
			return NoticeGroupCard
		case "essence":
			return NoticeEssence
		case "group_msg_emoji_like":
			return NoticeGroupMsgEmojiLike
		case "bot_offline":
			return NoticeBotOffline
		case "notify":
			switch str(raw["sub_type"]) {
			case "group_name":
				return NoticeGroupName
			case "title":
				return NoticeGroupTitle
			case "poke":
				return NoticePoke
			case "profile_like":
				return NoticeProfileLike
			case "input_status":
				return NoticeInputStatus
			}
		}

	case "request":
		switch str(raw["request_type"]) {
		case "friend":
			return RequestFriend
		case "group":
			return RequestGroup
		}

	case "meta_event":
		switch str(raw["meta_event_type"]) {
		case "heartbeat":
			return MetaHeartbeat
		case "lifecycle":
			return MetaLifecycle
		}
	}

	sub := raw["message_type"]
	if sub == nil {
		sub = raw["notice_type"]
	}
	if sub == nil {
		sub = raw["request_type"]
	}
	if sub == nil {
		sub = raw["meta_event_type"]
	}
	logger.Dispatch().Warn().
		Str("post_type", str(raw["post_type"])).
		Str("sub_type", fmt.Sprintf("%v", sub)).
		Str("sub_sub_type", str(raw["sub_type"])).
		Msg("unrecognized event structure")
	return Unexpected
}
