// server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/wfunc/atlas/puzzle"
	"github.com/wfunc/atlas/room"
)

type PuzzleResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

type HintResponse struct {
	TimerSec int `json:"timerSec"`
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return payloadError("Malformed JSON body")
	}
	return nil
}

// allowAction 按客户端 IP 限制游戏操作
func (s *GameServer) allowAction(w http.ResponseWriter, r *http.Request) bool {
	if s.actionLimiter.Allow("action:" + clientIP(r)) {
		return true
	}
	writeError(w, ErrRateLimited)
	return false
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if !s.allowAction(w, r) {
		return
	}
	var req CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pseudo, err := validatePseudo(req.Pseudo)
	if err != nil {
		writeError(w, err)
		return
	}

	rm, player := s.roomManager.CreateRoom(pseudo)
	s.monitor.SetActiveRooms(s.roomManager.Count())
	writeJSON(w, http.StatusOK, RoomResponse{Room: rm.Snapshot(), PlayerID: player.ID})
}

// handleJoinRoom 按 joinCode 加入，路径中的 roomId 不参与查找
func (s *GameServer) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	if !s.allowAction(w, r) {
		return
	}
	var req JoinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pseudo, err := validatePseudo(req.Pseudo)
	if err != nil {
		writeError(w, err)
		return
	}
	code, err := validateJoinCode(req.JoinCode)
	if err != nil {
		writeError(w, err)
		return
	}

	rm, player, err := s.roomManager.JoinRoom(code, pseudo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{Room: rm.Snapshot(), PlayerID: player.ID})
}

// handleRoomState 轮询接口，since 等于当前 version 时返回 204
func (s *GameServer) handleRoomState(w http.ResponseWriter, r *http.Request) {
	var since *int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, payloadError("since must be an integer"))
			return
		}
		since = &v
	}

	snap, changed, err := s.roomManager.RoomState(mux.Vars(r)["roomId"], since)
	if err != nil {
		writeError(w, err)
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *GameServer) handleStartGame(w http.ResponseWriter, r *http.Request) {
	if !s.allowAction(w, r) {
		return
	}
	if err := s.roomManager.StartGame(mux.Vars(r)["roomId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *GameServer) handleSubmitPuzzle(w http.ResponseWriter, r *http.Request) {
	if !s.allowAction(w, r) {
		return
	}
	vars := mux.Vars(r)
	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateAnswer(req.Answer); err != nil {
		writeError(w, err)
		return
	}
	continent, err := parseContinent(vars["continent"])
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.roomManager.SubmitPuzzle(vars["roomId"], continent, req.Answer, req.PlayerID)
	s.recordSubmission("puzzle", result, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PuzzleResponse{
		Success:   result.Success,
		ErrorCode: result.ErrorCode,
		Message:   result.Message,
	})
}

func (s *GameServer) handleRequestHint(w http.ResponseWriter, r *http.Request) {
	if !s.allowAction(w, r) {
		return
	}
	vars := mux.Vars(r)
	continent, err := parseContinent(vars["continent"])
	if err != nil {
		writeError(w, err)
		return
	}

	timer, err := s.roomManager.RequestHint(vars["roomId"], continent)
	s.recordOutcome("hint", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HintResponse{TimerSec: timer})
}

func (s *GameServer) handleSubmitMeta(w http.ResponseWriter, r *http.Request) {
	s.handleAnswer(w, r, "meta", s.roomManager.SubmitMeta)
}

func (s *GameServer) handleSubmitFinal(w http.ResponseWriter, r *http.Request) {
	s.handleAnswer(w, r, "final", s.roomManager.SubmitFinal)
}

func (s *GameServer) handleAnswer(w http.ResponseWriter, r *http.Request, kind string, submit func(roomID, answer string) error) {
	if !s.allowAction(w, r) {
		return
	}
	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateAnswer(req.Answer); err != nil {
		writeError(w, err)
		return
	}

	err := submit(mux.Vars(r)["roomId"], req.Answer)
	s.recordOutcome(kind, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PuzzleResponse{Success: true})
}

func (s *GameServer) recordSubmission(kind string, result puzzle.Result, err error) {
	switch {
	case err != nil:
		s.recordOutcome(kind, err)
	case !result.Success:
		s.monitor.IncSubmission(kind, result.ErrorCode)
	default:
		s.monitor.IncSubmission(kind, "ok")
	}
}

func (s *GameServer) recordOutcome(kind string, err error) {
	if err == nil {
		s.monitor.IncSubmission(kind, "ok")
		return
	}
	var gameErr *room.GameError
	if errors.As(err, &gameErr) {
		s.monitor.IncSubmission(kind, gameErr.Code)
		return
	}
	s.monitor.IncSubmission(kind, CodeInternal)
}
