package migrations

import (
	"gorm.io/gorm"
)

// Migration002DrugLabelCache creates the FDA label cache table.
type Migration002DrugLabelCache struct{}

func (m *Migration002DrugLabelCache) Version() string {
	return "002_drug_label_cache"
}

func (m *Migration002DrugLabelCache) Description() string {
	return "Create drug_label_cache table"
}

func (m *Migration002DrugLabelCache) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drug_label_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(255) NOT NULL UNIQUE,
			label JSON NOT NULL,
			expires_at DATETIME,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_drug_label_cache_expires_at ON drug_label_cache(expires_at)`).Error
}

func (m *Migration002DrugLabelCache) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS drug_label_cache`).Error
}
