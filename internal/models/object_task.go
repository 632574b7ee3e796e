package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

const MimeTypeGLB = "model/gltf-binary"

// ObjectTaskEntity is one description->artifact job as stored. Attempts hang
// off it as ObjectTaskResultEntity rows.
type ObjectTaskEntity struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Version       string         `gorm:"not null;type:varchar(64)" json:"version"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `gorm:"not null;type:text" json:"description"`
	LanguageModel string         `gorm:"not null;type:varchar(128)" json:"language_model"`
	Props         datatypes.JSON `gorm:"type:jsonb" json:"props"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Results []ObjectTaskResultEntity `gorm:"foreignKey:TaskID;references:ID" json:"results,omitempty"`
}

func (ObjectTaskEntity) TableName() string {
	return "object_tasks"
}

// ObjectTaskResultEntity is one persisted attempt. The final attempt uses the
// task's own version; earlier failed attempts use derived sub-versions, so
// rows are append-only and never rewritten.
type ObjectTaskResultEntity struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	TaskID      string         `gorm:"not null;index;type:varchar(64)" json:"task_id"`
	Version     string         `gorm:"not null;index;type:varchar(96)" json:"version"`
	Status      TaskStatus     `gorm:"type:varchar(20);not null" json:"status"`
	Code        string         `gorm:"type:text" json:"code,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	MimeType    string         `gorm:"type:varchar(64)" json:"mime_type,omitempty"`
	Content     []byte         `gorm:"type:bytea" json:"-"`
	Snapshot    []byte         `gorm:"type:bytea" json:"-"`
	Logs        pq.StringArray `gorm:"type:text[]" json:"logs,omitempty"`
	DroppedLogs int            `json:"dropped_logs,omitempty"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	EndedAt     time.Time      `gorm:"not null" json:"ended_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (ObjectTaskResultEntity) TableName() string {
	return "object_task_results"
}
