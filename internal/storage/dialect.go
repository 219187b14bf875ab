package storage

// dialect holds the driver-specific SQL for the key/value table.
type dialect struct {
	name         string
	migrations   []string
	selectValue  string
	selectLocked string
	upsert       string
	deleteKey    string
	listKeys     string
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			kv_key TEXT PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	selectValue:  `SELECT kv_value FROM kv_store WHERE kv_key = ?`,
	selectLocked: `SELECT kv_value FROM kv_store WHERE kv_key = ?`,
	upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`,
	deleteKey: `DELETE FROM kv_store WHERE kv_key = ?`,
	listKeys:  `SELECT kv_key FROM kv_store WHERE kv_key LIKE ? ORDER BY kv_key`,
}

var postgresDialect = dialect{
	name: DriverPostgres,
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			kv_key TEXT PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	selectValue:  `SELECT kv_value FROM kv_store WHERE kv_key = $1`,
	selectLocked: `SELECT kv_value FROM kv_store WHERE kv_key = $1 FOR UPDATE`,
	upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at`,
	deleteKey: `DELETE FROM kv_store WHERE kv_key = $1`,
	listKeys:  `SELECT kv_key FROM kv_store WHERE kv_key LIKE $1 ORDER BY kv_key`,
}

var mysqlDialect = dialect{
	name: DriverMySQL,
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			kv_key VARCHAR(191) PRIMARY KEY,
			kv_value LONGTEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
		) CHARACTER SET utf8mb4`,
	},
	selectValue:  `SELECT kv_value FROM kv_store WHERE kv_key = ?`,
	selectLocked: `SELECT kv_value FROM kv_store WHERE kv_key = ? FOR UPDATE`,
	upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)`,
	deleteKey: `DELETE FROM kv_store WHERE kv_key = ?`,
	listKeys:  `SELECT kv_key FROM kv_store WHERE kv_key LIKE ? ORDER BY kv_key`,
}
