// Package history implements the embedded History Store: three
// scope-partitioned event tables (friend/group/other) plus the per-plugin
// config table, backed by a single WAL-journaled SQLite file.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"

	_ "modernc.org/sqlite"
)

const (
	maxWriteRetries = 3
	writeRetryDelay = time.Second
)

// Store wraps the embedded SQLite database used for event archival and
// per-plugin configuration.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if needed) and migrates the database file at path, applying
// WAL journaling for concurrent reader access.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL still allows concurrent external readers

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate %s: %w", path, err)
	}

	logger.Database().Info().Str("path", path).Msg("history store initialized")
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// destination describes which table and row an Archive call writes to.
type destination struct {
	table  string
	sql    string
	params []any
}

// classify mirrors the original framework's scope assignment: friend-scoped
// kinds need a user id, group-scoped kinds need a group id, NOTICE_POKE
// falls to whichever of the two is present (group first), and everything
// else lands in OTHER_EVENTS.
func classify(kind eventkind.Kind, raw eventkind.RawEvent, eventData string, ts int64) *destination {
	friendKinds := map[eventkind.Kind]bool{
		eventkind.MessagePrivate:      true,
		eventkind.NoticeFriendRecall:  true,
		eventkind.NoticeFriendAdd:     true,
		eventkind.NoticeProfileLike:   true,
	}
	groupKinds := map[eventkind.Kind]bool{
		eventkind.MessageGroup:            true,
		eventkind.MessageGroupMention:      true,
		eventkind.MessageGroupBot:          true,
		eventkind.NoticeGroupRecall:        true,
		eventkind.NoticeGroupIncrease:      true,
		eventkind.NoticeGroupDecrease:      true,
		eventkind.NoticeGroupAdmin:         true,
		eventkind.NoticeGroupBan:           true,
		eventkind.NoticeGroupUpload:        true,
		eventkind.NoticeGroupCard:          true,
		eventkind.NoticeEssence:            true,
		eventkind.NoticeGroupMsgEmojiLike:  true,
		eventkind.NoticeGroupName:          true,
		eventkind.NoticeGroupTitle:         true,
	}

	if friendKinds[kind] {
		if userID := raw["user_id"]; notEmpty(userID) {
			return &destination{
				table:  "FRIEND_EVENTS",
				sql:    "INSERT INTO FRIEND_EVENTS (USER_ID, EVENT_TYPE, EVENT_DATA, TIMESTAMP) VALUES (?, ?, ?, ?)",
				params: []any{userID, string(kind), eventData, ts},
			}
		}
	} else if groupKinds[kind] {
		if groupID := raw["group_id"]; notEmpty(groupID) {
			return &destination{
				table:  "GROUP_EVENTS",
				sql:    "INSERT INTO GROUP_EVENTS (GROUP_ID, USER_ID, EVENT_TYPE, EVENT_DATA, TIMESTAMP) VALUES (?, ?, ?, ?, ?)",
				params: []any{groupID, raw["user_id"], string(kind), eventData, ts},
			}
		}
	} else if kind == eventkind.NoticePoke {
		if groupID := raw["group_id"]; notEmpty(groupID) {
			return &destination{
				table:  "GROUP_EVENTS",
				sql:    "INSERT INTO GROUP_EVENTS (GROUP_ID, USER_ID, EVENT_TYPE, EVENT_DATA, TIMESTAMP) VALUES (?, ?, ?, ?, ?)",
				params: []any{groupID, raw["user_id"], string(kind), eventData, ts},
			}
		}
		if userID := raw["user_id"]; notEmpty(userID) {
			return &destination{
				table:  "FRIEND_EVENTS",
				sql:    "INSERT INTO FRIEND_EVENTS (USER_ID, EVENT_TYPE, EVENT_DATA, TIMESTAMP) VALUES (?, ?, ?, ?)",
				params: []any{userID, string(kind), eventData, ts},
			}
		}
	}

	return &destination{
		table:  "OTHER_EVENTS",
		sql:    "INSERT INTO OTHER_EVENTS (EVENT_TYPE, EVENT_DATA, TIMESTAMP) VALUES (?, ?, ?)",
		params: []any{string(kind), eventData, ts},
	}
}

func notEmpty(v any) bool {
	if v == nil {
		return false
	}
	switch n := v.(type) {
	case float64:
		return n != 0
	case string:
		return n != ""
	default:
		return true
	}
}

// Archive persists a classified raw event. NOTICE_INPUT_STATUS is skipped:
// it fires too frequently to be worth recording. Writes retry up to
// maxWriteRetries times with a fixed backoff before being abandoned and
// logged — a dropped archival record never blocks dispatch.
func (s *Store) Archive(kind eventkind.Kind, raw eventkind.RawEvent) {
	if kind == eventkind.NoticeInputStatus {
		return
	}

	eventData, err := json.Marshal(raw)
	if err != nil {
		logger.Database().Error().Err(err).Msg("archive: failed to serialize event")
		return
	}

	dest := classify(kind, raw, string(eventData), time.Now().Unix())

	for attempt := 1; attempt <= maxWriteRetries; attempt++ {
		_, err := s.db.Exec(dest.sql, dest.params...)
		if err == nil {
			return
		}
		if attempt < maxWriteRetries {
			logger.Database().Warn().Err(err).Str("table", dest.table).
				Int("attempt", attempt).Msg("archive write failed, retrying")
			time.Sleep(writeRetryDelay)
			continue
		}
		logger.Database().Error().Err(err).Str("table", dest.table).
			Msg("archive write abandoned after retries")
	}
}

// PluginConfigRead returns a plugin's stored configuration, or an empty map
// if none exists or the stored JSON is corrupt.
func (s *Store) PluginConfigRead(pluginName string) map[string]any {
	if pluginName == "" {
		logger.Database().Warn().Msg("config read: empty plugin name")
		return map[string]any{}
	}

	var raw string
	err := s.db.QueryRow("SELECT CONFIG_DATA FROM PLUGIN_CONFIGS WHERE PLUGIN_NAME = ?", pluginName).Scan(&raw)
	if err == sql.ErrNoRows {
		return map[string]any{}
	}
	if err != nil {
		logger.Database().Error().Err(err).Str("plugin", pluginName).Msg("config read failed")
		return map[string]any{}
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		logger.Database().Error().Err(err).Str("plugin", pluginName).Msg("config read: corrupt JSON")
		return map[string]any{}
	}
	return cfg
}

// PluginConfigWrite upserts a plugin's configuration, preserving CREATED_AT
// across updates. Retries like Archive.
func (s *Store) PluginConfigWrite(pluginName string, cfg map[string]any) error {
	if pluginName == "" {
		return fmt.Errorf("history: empty plugin name")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("history: serialize config for %s: %w", pluginName, err)
	}
	ts := time.Now().Unix()

	const upsert = `
		INSERT OR REPLACE INTO PLUGIN_CONFIGS (PLUGIN_NAME, CONFIG_DATA, CREATED_AT, UPDATED_AT)
		VALUES (?, ?, COALESCE((SELECT CREATED_AT FROM PLUGIN_CONFIGS WHERE PLUGIN_NAME = ?), ?), ?)
	`

	var lastErr error
	for attempt := 1; attempt <= maxWriteRetries; attempt++ {
		_, lastErr = s.db.Exec(upsert, pluginName, string(data), pluginName, ts, ts)
		if lastErr == nil {
			return nil
		}
		if attempt < maxWriteRetries {
			logger.Database().Warn().Err(lastErr).Str("plugin", pluginName).
				Int("attempt", attempt).Msg("config write failed, retrying")
			time.Sleep(writeRetryDelay)
		}
	}
	return fmt.Errorf("history: config write abandoned for %s: %w", pluginName, lastErr)
}

// QueryIdentifier selects the scope Query reads from.
type QueryIdentifier struct {
	Type      string // "private", "group", or "other"
	UserID    any
	GroupID   any
	EventType string
}

// Query returns up to count past event payloads for the given identifier in
// chronological order (count == 0 means unlimited). Rows with corrupt JSON
// are skipped rather than failing the whole query.
func (s *Store) Query(id QueryIdentifier, count int) []map[string]any {
	var rows *sql.Rows
	var err error

	switch id.Type {
	case "private":
		if !notEmpty(id.UserID) {
			logger.Database().Warn().Msg("query: private type missing user_id")
			return nil
		}
		rows, err = s.queryRows("FRIEND_EVENTS", "USER_ID", id.UserID, count)
	case "group":
		if !notEmpty(id.GroupID) {
			logger.Database().Warn().Msg("query: group type missing group_id")
			return nil
		}
		rows, err = s.queryRows("GROUP_EVENTS", "GROUP_ID", id.GroupID, count)
	case "other":
		if id.EventType == "" {
			logger.Database().Warn().Msg("query: other type missing event_type")
			return nil
		}
		rows, err = s.queryRows("OTHER_EVENTS", "EVENT_TYPE", id.EventType, count)
	default:
		logger.Database().Warn().Str("type", id.Type).Msg("query: unknown identifier type")
		return nil
	}

	if err != nil {
		logger.Database().Error().Err(err).Msg("query failed")
		return nil
	}
	defer rows.Close()

	var events []map[string]any
	i := 0
	for rows.Next() {
		i++
		var raw string
		if err := rows.Scan(&raw); err != nil {
			logger.Database().Warn().Int("row", i).Msg("query: failed to scan row, skipping")
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			logger.Database().Warn().Int("row", i).Msg("query: corrupted JSON, skipping")
			continue
		}
		events = append(events, event)
	}

	for left, right := 0, len(events)-1; left < right; left, right = left+1, right-1 {
		events[left], events[right] = events[right], events[left]
	}
	return events
}

func (s *Store) queryRows(table, column string, value any, count int) (*sql.Rows, error) {
	q := fmt.Sprintf("SELECT EVENT_DATA FROM %s WHERE %s = ? ORDER BY TIMESTAMP DESC, ID DESC", table, column)
	if count > 0 {
		q += " LIMIT ?"
		return s.db.Query(q, value, count)
	}
	return s.db.Query(q, value)
}
