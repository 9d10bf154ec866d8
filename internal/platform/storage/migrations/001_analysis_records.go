package migrations

import (
	"gorm.io/gorm"
)

// Migration001AnalysisRecords creates the analysis audit table.
type Migration001AnalysisRecords struct{}

func (m *Migration001AnalysisRecords) Version() string {
	return "001_analysis_records"
}

func (m *Migration001AnalysisRecords) Description() string {
	return "Create analysis_records audit table"
}

func (m *Migration001AnalysisRecords) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id VARCHAR(64) NOT NULL UNIQUE,
			source VARCHAR(32),
			success BOOLEAN NOT NULL DEFAULT 0,
			error_code VARCHAR(64),
			confidence REAL,
			confidence_level VARCHAR(32),
			image_quality VARCHAR(16),
			image_bytes INTEGER,
			drug_info_available BOOLEAN NOT NULL DEFAULT 0,
			vision_model VARCHAR(255),
			processing_ms INTEGER,
			stages JSON,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_records_created_at ON analysis_records(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_records_success ON analysis_records(success)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_records_source ON analysis_records(source)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001AnalysisRecords) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS analysis_records`).Error
}
