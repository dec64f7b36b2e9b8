// models/snapshot.go
package models

import "time"

// RoomSnapshot 房间完整状态，用于广播、轮询和持久化
type RoomSnapshot struct {
	ID             string            `json:"id"`
	JoinCode       string            `json:"joinCode"`
	Stage          Stage             `json:"stage"`
	TimerSec       int               `json:"timerSec"`
	Draw           []Continent       `json:"draw"`
	Solved         map[string]bool   `json:"solved"`
	HintsUsed      map[string]int    `json:"hintsUsed"`
	Fragments      map[string]string `json:"fragments"`
	Players        []Player          `json:"players"`
	Version        int64             `json:"version"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastActivity   time.Time         `json:"lastActivity"`
	FinalStartedAt *time.Time        `json:"finalStartedAt,omitempty"`
}
