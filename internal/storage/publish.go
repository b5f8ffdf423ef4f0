package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Sentinel errors for publish history operations.
var (
	ErrNilRecord = errors.New("publish record cannot be nil")
	ErrNotFound  = errors.New("publish record not found")
)

// PublishRecord is one successful version upload.
type PublishRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Publication string    `gorm:"not null;index" json:"publication"`
	Owner       string    `gorm:"not null;index:idx_publish_project" json:"owner"`
	Slug        string    `gorm:"not null;index:idx_publish_project" json:"slug"`
	Version     string    `gorm:"not null" json:"version"`
	Channel     string    `gorm:"not null" json:"channel"`
	Endpoint    string    `gorm:"not null" json:"endpoint"`
	URL         string    `json:"url,omitempty"`
	FileCount   int       `gorm:"not null;default:0" json:"file_count"`
	Manifest    string    `gorm:"type:json" json:"manifest"` // versionUpload payload as sent
	PublishedAt time.Time `gorm:"not null;index" json:"published_at"`
	CreatedAt   time.Time `json:"-"`
}

// TableName overrides the table name for GORM.
func (PublishRecord) TableName() string {
	return "publishes"
}

// RecordPublish inserts a publish record.
func (d *DB) RecordPublish(record *PublishRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	if record.PublishedAt.IsZero() {
		record.PublishedAt = time.Now().UTC()
	}
	if err := d.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record publish: %w", err)
	}
	return nil
}

// GetPublish returns the most recent record of owner/slug at version.
func (d *DB) GetPublish(owner, slug, version string) (*PublishRecord, error) {
	var record PublishRecord
	err := d.db.Where("owner = ? AND slug = ? AND version = ?", owner, slug, version).
		Order("published_at DESC").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publish %s/%s@%s: %w", owner, slug, version, err)
	}
	return &record, nil
}

// ListByProject returns every record for owner/slug, newest first.
func (d *DB) ListByProject(owner, slug string) ([]*PublishRecord, error) {
	var records []*PublishRecord
	if err := d.db.Where("owner = ? AND slug = ?", owner, slug).
		Order("published_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list publishes for %s/%s: %w", owner, slug, err)
	}
	return records, nil
}

// ListAll returns every record, newest first.
func (d *DB) ListAll() ([]*PublishRecord, error) {
	var records []*PublishRecord
	if err := d.db.Order("published_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list all publishes: %w", err)
	}
	return records, nil
}
