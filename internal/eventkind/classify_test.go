package eventkind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPrivateMessage(t *testing.T) {
	raw := RawEvent{
		"post_type":    "message",
		"message_type": "private",
		"user_id":      float64(123),
	}
	assert.Equal(t, MessagePrivate, Classify(raw))
}

func TestClassifyGroupMentionTakesPriorityOverCommandPrefix(t *testing.T) {
	raw := RawEvent{
		"post_type":    "message",
		"message_type": "group",
		"self_id":      "999",
		"message": []any{
			map[string]any{"type": "at", "data": map[string]any{"qq": "999"}},
			map[string]any{"type": "text", "data": map[string]any{"text": "/cmd"}},
		},
	}
	assert.Equal(t, MessageGroupMention, Classify(raw))
}

func TestClassifyGroupBotCommandPrefix(t *testing.T) {
	raw := RawEvent{
		"post_type":    "message",
		"message_type": "group",
		"self_id":      "999",
		"message": []any{
			map[string]any{"type": "text", "data": map[string]any{"text": "  .roll 2d6"}},
		},
	}
	assert.Equal(t, MessageGroupBot, Classify(raw))
}

func TestClassifyPlainGroupMessage(t *testing.T) {
	raw := RawEvent{
		"post_type":    "message",
		"message_type": "group",
		"self_id":      "999",
		"message": []any{
			map[string]any{"type": "text", "data": map[string]any{"text": "hello there"}},
		},
	}
	assert.Equal(t, MessageGroup, Classify(raw))
}

func TestClassifyNoticePokeNested(t *testing.T) {
	raw := RawEvent{
		"post_type":   "notice",
		"notice_type": "notify",
		"sub_type":    "poke",
	}
	assert.Equal(t, NoticePoke, Classify(raw))
}

func TestClassifyUnexpected(t *testing.T) {
	raw := RawEvent{"post_type": "something_unknown"}
	assert.Equal(t, Unexpected, Classify(raw))
}

func TestExpandInheritedDedupesAndOrders(t *testing.T) {
	assert.Equal(t, []Kind{MessageGroupMention, MessageGroup}, ExpandInherited(MessageGroupMention))
	assert.Equal(t, []Kind{MessagePrivate}, ExpandInherited(MessagePrivate))
}

func TestSimplifyPrivateHasNoGroupID(t *testing.T) {
	raw := RawEvent{
		"user_id": float64(42),
		"message": []any{
			map[string]any{"type": "text", "data": map[string]any{"text": "hi"}},
		},
	}
	se := Simplify(MessagePrivate, raw)
	assert.NotNil(t, se)
	assert.Nil(t, se.GroupID)
	assert.Equal(t, "hi", se.TextMessage)
}

func TestSimplifyNonMessageKindIsNil(t *testing.T) {
	assert.Nil(t, Simplify(NoticeFriendAdd, RawEvent{}))
}
