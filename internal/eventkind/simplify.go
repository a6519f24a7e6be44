package eventkind

// SimpleEvent is the convenience view handlers receive for private and group
// messages: concatenated text plus the originating identifiers. GroupID is
// nil for private messages.
type SimpleEvent struct {
	UserID      any
	GroupID     any
	TextMessage string
}

func concatText(raw RawEvent) string {
	text := ""
	for _, seg := range segments(raw) {
		if str(seg["type"]) == "text" {
			text += str(segmentData(seg)["text"])
		}
	}
	return text
}

// Simplify builds the Simple Event view for a classified private or group
// message kind, returning nil for every other kind.
func Simplify(kind Kind, raw RawEvent) *SimpleEvent {
	switch kind {
	case MessagePrivate:
		return &SimpleEvent{
			UserID:      raw["user_id"],
			TextMessage: concatText(raw),
		}
	case MessageGroup, MessageGroupMention, MessageGroupBot:
		return &SimpleEvent{
			UserID:      raw["user_id"],
			GroupID:     raw["group_id"],
			TextMessage: concatText(raw),
		}
	default:
		return nil
	}
}
