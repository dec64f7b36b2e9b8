// models/events.go
package models

// EventType 广播事件类型
type EventType string

const (
	EventSnapshot     EventType = "SNAPSHOT"
	EventStageChange  EventType = "STAGE_CHANGE"
	EventPuzzleResult EventType = "PUZZLE_RESULT"
	EventHintGranted  EventType = "HINT_GRANTED"
	EventFinalResult  EventType = "FINAL_RESULT"
	EventTimerTick    EventType = "TIMER_TICK"
	EventChat         EventType = "CHAT"
)

// Event is one message on a room topic. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType     `json:"type"`
	Room      *RoomSnapshot `json:"room,omitempty"`
	Stage     Stage         `json:"stage,omitempty"`
	Continent Continent     `json:"continent,omitempty"`
	Success   *bool         `json:"success,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`
	TimerSec  *int          `json:"timerSec,omitempty"`
	PlayerID  string        `json:"playerId,omitempty"`
	Pseudo    string        `json:"pseudo,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

func SnapshotEvent(s RoomSnapshot) Event {
	return Event{Type: EventSnapshot, Room: &s}
}

func StageChangeEvent(stage Stage) Event {
	return Event{Type: EventStageChange, Stage: stage}
}

func PuzzleResultEvent(c Continent, success bool, errorCode string) Event {
	return Event{Type: EventPuzzleResult, Continent: c, Success: &success, ErrorCode: errorCode}
}

func HintGrantedEvent(c Continent, timerSec int) Event {
	return Event{Type: EventHintGranted, Continent: c, TimerSec: &timerSec}
}

func FinalResultEvent(success bool) Event {
	return Event{Type: EventFinalResult, Success: &success}
}

func TimerTickEvent(timerSec int) Event {
	return Event{Type: EventTimerTick, TimerSec: &timerSec}
}

// ChatEvent timestamp is unix milliseconds.
func ChatEvent(playerID, pseudo, message string, timestamp int64) Event {
	return Event{Type: EventChat, PlayerID: playerID, Pseudo: pseudo, Message: message, Timestamp: timestamp}
}
