package migrations

import (
	"gorm.io/gorm"
)

// Migration001LookupCache creates the nutrition lookup cache table.
type Migration001LookupCache struct{}

func (m *Migration001LookupCache) Version() string {
	return "001_lookup_cache"
}

func (m *Migration001LookupCache) Description() string {
	return "Create nutrition lookup cache table"
}

func (m *Migration001LookupCache) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS lookup_cache_entries (
			cache_key VARCHAR(255) PRIMARY KEY,
			record JSON NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_lookup_cache_entries_expires_at ON lookup_cache_entries(expires_at)`).Error
}
