// room/errors.go
package room

// GameError 引擎层错误，Code 稳定，传输层按 Code 一一映射
type GameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GameError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrRoomNotFound     = &GameError{Code: "ERR_ROOM_NOT_FOUND", Message: "Room not found"}
	ErrRoomFull         = &GameError{Code: "ERR_ROOM_FULL", Message: "Room is full (max 4 players)"}
	ErrNotEnoughPlayers = &GameError{Code: "ERR_NOT_ENOUGH_PLAYERS", Message: "Need at least 2 players to start"}
	ErrInvalidStage     = &GameError{Code: "ERR_STAGE", Message: "Action not allowed at this stage"}
	ErrInvalidContinent = &GameError{Code: "ERR_INVALID_CONTINENT", Message: "Invalid continent"}
	ErrAlreadySolved    = &GameError{Code: "ERR_ALREADY_SOLVED", Message: "Puzzle already solved"}
	ErrMaxHintsReached  = &GameError{Code: "ERR_MAX_HINTS", Message: "Maximum hints reached for this puzzle"}
	ErrMetaIncorrect    = &GameError{Code: "ERR_META_WRONG", Message: "Incorrect meta solution"}
	ErrFinalTimeout     = &GameError{Code: "ERR_FINAL_TIMEOUT", Message: "Time's up for final submission"}
	ErrFinalIncorrect   = &GameError{Code: "ERR_FINAL_WRONG", Message: "Incorrect disarm code"}
)
