package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/farmshop/storefront/pkg/logger"
	"gorm.io/gorm"
)

// FailedJobRecord is a job that exhausted its retries. The table is created
// by the failed_jobs migration.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"autoCreateTime"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// UseDB persists failures of the default manager to db.
func UseDB(db *gorm.DB) { defaultManager.UseDB(db) }

func (m *Manager) UseDB(db *gorm.DB) {
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
}

// persistFailed keeps the failure in memory and, when a database is
// configured, in the failed_jobs table.
func (m *Manager) persistFailed(job Job, typeName string, lastErr error, attempts int) {
	now := time.Now()
	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return
	}
	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte("{}")
	}
	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: now,
	}
	if err := db.WithContext(context.Background()).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
