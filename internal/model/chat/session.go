package chat

import "time"

// Stage is the orchestration state of a session's current request.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageBuildingContext    Stage = "building_context"
	StageAwaitingCompletion Stage = "awaiting_completion"
	StageDelivering         Stage = "delivering"
)

// Session captures a transient anonymous conversation.
type Session struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"personaId"`
	Stage        Stage     `json:"stage"`
	DocumentName string    `json:"documentName,omitempty"`
	TurnCount    int       `json:"turnCount"`
	HasAPIKey    bool      `json:"hasApiKey"`
	CreatedAt    time.Time `json:"createdAt"`
}
