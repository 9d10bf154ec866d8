package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/platform/storage"
)

type sqliteCache struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a label cache on the drug_label_cache table, which
// survives restarts.
func NewSQLite(db *gorm.DB, cfg Config) (Cache, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite cache requires database handle")
	}
	return &sqliteCache{db: db, ttl: ttlOrDefault(cfg.TTL)}, nil
}

func (c *sqliteCache) Get(ctx context.Context, name string) (model.Label, bool, error) {
	var row storage.DrugLabelEntry
	err := c.db.WithContext(ctx).Where("name = ?", Key(name)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Label{}, false, nil
	}
	if err != nil {
		return model.Label{}, false, err
	}
	if time.Now().After(row.ExpiresAt) {
		return model.Label{}, false, nil
	}
	var label model.Label
	if err := sonic.Unmarshal(row.Label, &label); err != nil {
		return model.Label{}, false, fmt.Errorf("decode cached label: %w", err)
	}
	return label, true, nil
}

func (c *sqliteCache) Set(ctx context.Context, name string, label model.Label) error {
	data, err := sonic.Marshal(label)
	if err != nil {
		return err
	}
	now := time.Now()
	row := storage.DrugLabelEntry{
		Name:      Key(name),
		Label:     data,
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "expires_at", "created_at"}),
	}).Create(&row).Error
}

func (c *sqliteCache) Delete(ctx context.Context, name string) error {
	return c.db.WithContext(ctx).Where("name = ?", Key(name)).Delete(&storage.DrugLabelEntry{}).Error
}

func (c *sqliteCache) CleanupExpired(ctx context.Context) error {
	return c.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&storage.DrugLabelEntry{}).
		Error
}

func (c *sqliteCache) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := c.db.WithContext(ctx).Model(&storage.DrugLabelEntry{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "sqlite",
		"total": total,
		"ttl":   int(c.ttl.Seconds()),
	}, nil
}

func (c *sqliteCache) Close(context.Context) error {
	return nil
}
