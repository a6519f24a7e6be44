package history

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS FRIEND_EVENTS (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	USER_ID INTEGER NOT NULL,
	EVENT_TYPE TEXT NOT NULL,
	EVENT_DATA TEXT NOT NULL,
	TIMESTAMP INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS IDX_FRIEND_USER ON FRIEND_EVENTS(USER_ID, TIMESTAMP DESC);

CREATE TABLE IF NOT EXISTS GROUP_EVENTS (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	GROUP_ID INTEGER NOT NULL,
	USER_ID INTEGER,
	EVENT_TYPE TEXT NOT NULL,
	EVENT_DATA TEXT NOT NULL,
	TIMESTAMP INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS IDX_GROUP_ID ON GROUP_EVENTS(GROUP_ID, TIMESTAMP DESC);
CREATE INDEX IF NOT EXISTS IDX_GROUP_USER ON GROUP_EVENTS(GROUP_ID, USER_ID, TIMESTAMP DESC);

CREATE TABLE IF NOT EXISTS OTHER_EVENTS (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	EVENT_TYPE TEXT NOT NULL,
	EVENT_DATA TEXT NOT NULL,
	TIMESTAMP INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS IDX_OTHER_TYPE ON OTHER_EVENTS(EVENT_TYPE, TIMESTAMP DESC);

CREATE TABLE IF NOT EXISTS PLUGIN_CONFIGS (
	PLUGIN_NAME TEXT PRIMARY KEY,
	CONFIG_DATA TEXT NOT NULL,
	CREATED_AT INTEGER NOT NULL,
	UPDATED_AT INTEGER NOT NULL
);
`
