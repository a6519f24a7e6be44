// Package eventkind classifies raw inbound events into the closed Event Kind
// enumeration, expands inherited kinds, and derives the Simple Event
// convenience view for private/group messages.
package eventkind

// Kind is one member of the closed event-kind enumeration.
type Kind string

const (
	MessagePrivate     Kind = "MESSAGE_PRIVATE"
	MessageGroup       Kind = "MESSAGE_GROUP"
	MessageGroupMention Kind = "MESSAGE_GROUP_MENTION"
	MessageGroupBot    Kind = "MESSAGE_GROUP_BOT"
	MessageSentPrivate Kind = "MESSAGE_SENT_PRIVATE"
	MessageSentGroup   Kind = "MESSAGE_SENT_GROUP"

	NoticeFriendAdd        Kind = "NOTICE_FRIEND_ADD"
	NoticeFriendRecall     Kind = "NOTICE_FRIEND_RECALL"
	NoticeGroupRecall      Kind = "NOTICE_GROUP_RECALL"
	NoticeGroupIncrease    Kind = "NOTICE_GROUP_INCREASE"
	NoticeGroupDecrease    Kind = "NOTICE_GROUP_DECREASE"
	NoticeGroupAdmin       Kind = "NOTICE_GROUP_ADMIN"
	NoticeGroupBan         Kind = "NOTICE_GROUP_BAN"
	NoticeGroupUpload      Kind = "NOTICE_GROUP_UPLOAD"
	NoticeGroupCard        Kind = "NOTICE_GROUP_CARD"
	NoticeGroupName        Kind = "NOTICE_GROUP_NAME"
	NoticeGroupTitle       Kind = "NOTICE_GROUP_TITLE"
	NoticePoke             Kind = "NOTICE_POKE"
	NoticeProfileLike      Kind = "NOTICE_PROFILE_LIKE"
	NoticeInputStatus      Kind = "NOTICE_INPUT_STATUS"
	NoticeEssence          Kind = "NOTICE_ESSENCE"
	NoticeGroupMsgEmojiLike Kind = "NOTICE_GROUP_MSG_EMOJI_LIKE"
	NoticeBotOffline       Kind = "NOTICE_BOT_OFFLINE"

	RequestFriend Kind = "REQUEST_FRIEND"
	RequestGroup  Kind = "REQUEST_GROUP"

	MetaHeartbeat Kind = "META_HEARTBEAT"
	MetaLifecycle Kind = "META_LIFECYCLE"

	Unconditional Kind = "UNCONDITIONAL"
	Initializer   Kind = "INITIALIZER"
	Unexpected    Kind = "UNEXPECTED"
)

// dispatchable is the closed set of kinds a plugin manifest may bind a
// regular handler to — it excludes the special manifest keys (INITIALIZER,
// UNCONDITIONAL) and the classifier's own fallback (UNEXPECTED), none of
// which a plugin ever registers against as an ordinary event kind.
var dispatchable = map[Kind]bool{
	MessagePrivate:          true,
	MessageGroup:            true,
	MessageGroupMention:     true,
	MessageGroupBot:         true,
	MessageSentPrivate:      true,
	MessageSentGroup:        true,
	NoticeFriendAdd:         true,
	NoticeFriendRecall:      true,
	NoticeGroupRecall:       true,
	NoticeGroupIncrease:     true,
	NoticeGroupDecrease:     true,
	NoticeGroupAdmin:        true,
	NoticeGroupBan:          true,
	NoticeGroupUpload:       true,
	NoticeGroupCard:         true,
	NoticeGroupName:         true,
	NoticeGroupTitle:        true,
	NoticePoke:              true,
	NoticeProfileLike:       true,
	NoticeInputStatus:       true,
	NoticeEssence:           true,
	NoticeGroupMsgEmojiLike: true,
	NoticeBotOffline:        true,
	RequestFriend:           true,
	RequestGroup:            true,
	MetaHeartbeat:           true,
	MetaLifecycle:           true,
}

// IsDispatchable reports whether kind is a recognized event kind a plugin
// manifest may bind a regular handler to.
func IsDispatchable(kind Kind) bool {
	return dispatchable[kind]
}

// Inheritance is the one-level static expansion table: a handler registered
// for a value kind also fires when the key kind is classified.
var Inheritance = map[Kind][]Kind{
	MessageGroupMention: {MessageGroup},
	MessageGroupBot:     {MessageGroup},
}

// ExpandInherited returns kind followed by every kind it inherits from,
// deduplicated, preserving first-seen order.
func ExpandInherited(kind Kind) []Kind {
	seen := map[Kind]bool{kind: true}
	out := []Kind{kind}
	for _, parent := range Inheritance[kind] {
		if !seen[parent] {
			seen[parent] = true
			out = append(out, parent)
		}
	}
	return out
}
