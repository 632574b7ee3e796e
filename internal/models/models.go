package models

import "time"

// CreateGenerationRequest is the POST /generations body. Props carries the
// prompt inputs; version is a caller-chosen millisecond timestamp string.
type CreateGenerationRequest struct {
	Version       string          `json:"version" binding:"required"`
	LanguageModel string          `json:"languageModel"`
	Props         GenerationProps `json:"props" binding:"required"`
}

type GenerationProps struct {
	ObjectName        string `json:"object_name" binding:"required"`
	ObjectDescription string `json:"object_description" binding:"required"`
}

// TaskStateView is one version row in the merged object state.
type TaskStateView struct {
	Version   string     `json:"version"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// ObjectStateView merges the live task (if any) with persisted attempts.
type ObjectStateView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tasks       []TaskStateView `json:"tasks"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
