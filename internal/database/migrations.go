package database

type migration struct {
	id   int
	name string
	sql  string
}

// Schema text may use {{blob}} and {{serial}}; see DB.schema.
var migrations = []migration{
	{
		id:   1,
		name: "initial_schema",
		sql: `
			-- Authors: anonymous editors identified by a token
			CREATE TABLE authors (
				id TEXT PRIMARY KEY,
				token TEXT UNIQUE NOT NULL,
				name TEXT NOT NULL,
				created_at TIMESTAMP,
				last_seen_at TIMESTAMP
			);

			-- Maps: one row per stored package, with the metadata needed for listings
			CREATE TABLE maps (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				uid TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				author TEXT NOT NULL DEFAULT '',
				tileset TEXT NOT NULL DEFAULT '',
				width INTEGER NOT NULL DEFAULT 0,
				height INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP,
				updated_at TIMESTAMP
			);
			CREATE INDEX idx_maps_uid ON maps(uid);

			-- Package files; seq keeps the listing order stable for the UID hash
			CREATE TABLE map_files (
				map_id TEXT NOT NULL,
				name TEXT NOT NULL,
				seq INTEGER NOT NULL,
				data {{blob}} NOT NULL,
				PRIMARY KEY (map_id, name),
				FOREIGN KEY (map_id) REFERENCES maps(id) ON DELETE CASCADE
			);
		`,
	},
	{
		id:   2,
		name: "map_history",
		sql: `
			CREATE TABLE map_history (
				id {{serial}},
				map_id TEXT NOT NULL,
				author_id TEXT NOT NULL DEFAULT '',
				author_name TEXT NOT NULL DEFAULT '',
				event_type TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TIMESTAMP,
				FOREIGN KEY (map_id) REFERENCES maps(id) ON DELETE CASCADE
			);
			CREATE INDEX idx_map_history_map ON map_history(map_id);
		`,
	},
}
