package model

import "time"

type HistoryEntry struct {
	ID        int64     `json:"id"`
	BoardKey  string    `json:"boardKey"`
	TaskID    string    `json:"taskId"`
	EventType string    `json:"eventType"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}
