// server/errors.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/room"
)

const (
	CodeRateLimit      = "ERR_RATE_LIMIT"
	CodePayloadInvalid = "ERR_PAYLOAD_INVALID"
	CodeInternal       = "ERR_INTERNAL"
)

var (
	ErrRateLimited = &room.GameError{Code: CodeRateLimit, Message: "Too many requests, please slow down"}
	ErrInternal    = &room.GameError{Code: CodeInternal, Message: "Internal server error"}
)

func payloadError(message string) *room.GameError {
	return &room.GameError{Code: CodePayloadInvalid, Message: message}
}

// asGameError 非引擎错误一律按 ERR_INTERNAL 返回，原始错误只记日志
func asGameError(err error) *room.GameError {
	var gameErr *room.GameError
	if errors.As(err, &gameErr) {
		return gameErr
	}
	logger.Log.Errorf("Unexpected error: %v", err)
	return ErrInternal
}

func statusFor(code string) int {
	switch code {
	case room.ErrRoomNotFound.Code:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	gameErr := asGameError(err)
	writeJSON(w, statusFor(gameErr.Code), gameErr)
}
