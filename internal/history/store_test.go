package history

import (
	"path/filepath"
	"testing"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArchiveFriendScope(t *testing.T) {
	s := openTestStore(t)
	s.Archive(eventkind.MessagePrivate, eventkind.RawEvent{"user_id": float64(7), "text": "hi"})

	events := s.Query(QueryIdentifier{Type: "private", UserID: float64(7)}, 0)
	require.Len(t, events, 1)
}

func TestArchiveGroupScope(t *testing.T) {
	s := openTestStore(t)
	s.Archive(eventkind.MessageGroup, eventkind.RawEvent{"group_id": float64(100), "user_id": float64(7)})

	events := s.Query(QueryIdentifier{Type: "group", GroupID: float64(100)}, 0)
	require.Len(t, events, 1)
}

func TestArchivePokeFallsToGroupThenFriend(t *testing.T) {
	s := openTestStore(t)
	s.Archive(eventkind.NoticePoke, eventkind.RawEvent{"group_id": float64(5), "user_id": float64(9)})
	s.Archive(eventkind.NoticePoke, eventkind.RawEvent{"user_id": float64(9)})
	s.Archive(eventkind.NoticePoke, eventkind.RawEvent{})

	groupEvents := s.Query(QueryIdentifier{Type: "group", GroupID: float64(5)}, 0)
	require.Len(t, groupEvents, 1)

	friendEvents := s.Query(QueryIdentifier{Type: "private", UserID: float64(9)}, 0)
	require.Len(t, friendEvents, 1)

	otherEvents := s.Query(QueryIdentifier{Type: "other", EventType: string(eventkind.NoticePoke)}, 0)
	require.Len(t, otherEvents, 1)
}

func TestArchiveSkipsInputStatus(t *testing.T) {
	s := openTestStore(t)
	s.Archive(eventkind.NoticeInputStatus, eventkind.RawEvent{"user_id": float64(1)})

	events := s.Query(QueryIdentifier{Type: "other", EventType: string(eventkind.NoticeInputStatus)}, 0)
	require.Len(t, events, 0)
}

func TestPluginConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.Empty(t, s.PluginConfigRead("dice"))

	require.NoError(t, s.PluginConfigWrite("dice", map[string]any{"sides": float64(6)}))
	cfg := s.PluginConfigRead("dice")
	require.Equal(t, float64(6), cfg["sides"])

	require.NoError(t, s.PluginConfigWrite("dice", map[string]any{"sides": float64(20)}))
	cfg = s.PluginConfigRead("dice")
	require.Equal(t, float64(20), cfg["sides"])
}

func TestQueryChronologicalOrder(t *testing.T) {
	s := openTestStore(t)
	s.Archive(eventkind.MessagePrivate, eventkind.RawEvent{"user_id": float64(1), "seq": float64(1)})
	s.Archive(eventkind.MessagePrivate, eventkind.RawEvent{"user_id": float64(1), "seq": float64(2)})

	events := s.Query(QueryIdentifier{Type: "private", UserID: float64(1)}, 0)
	require.Len(t, events, 2)
	require.Equal(t, float64(1), events[0]["seq"])
	require.Equal(t, float64(2), events[1]["seq"])
}
