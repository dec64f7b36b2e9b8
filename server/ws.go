// server/ws.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/network"
	"github.com/wfunc/atlas/room"
	"github.com/wfunc/atlas/session"
)

// handleWebSocket 订阅房间事件，连接需要带上房间内的 playerId
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	playerID := r.URL.Query().Get("playerId")

	rm, err := s.roomManager.GetRoom(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if playerID == "" || !rm.HasPlayer(playerID) {
		writeError(w, payloadError("Unknown player for this room"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.PlayerID = playerID
	sess.RoomID = roomID
	s.handleConnection(sess, rm, clientIP(r))
}

func (s *GameServer) handleConnection(sess *session.Session, rm *room.Room, ip string) {
	s.sessions.Add(sess)
	s.hub.Subscribe(rm.ID, sess)
	s.monitor.IncOnlineSessions()
	sess.Conn.SetHeartbeat(s.opts.Heartbeat)

	logger.Log.Infof("New connection from %s, session ID: %s, room %s, player %s",
		sess.Conn.RemoteAddr(), sess.GetID(), rm.ID, sess.PlayerID)

	// 先推一份当前快照，之后的变化走订阅
	if data, err := json.Marshal(models.SnapshotEvent(rm.Snapshot())); err == nil {
		sess.Enqueue(network.MsgTypeRoomEvent, data)
	}
	if err := rm.SetPlayerConnected(sess.PlayerID, true); err != nil {
		logger.Log.Debugf("Room %s: connect flag not updated: %v", rm.ID, err)
	}
	go sess.WritePump()

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", sess.Conn.RemoteAddr(), sess.GetID())
		s.hub.Unsubscribe(rm.ID, sess.GetID())
		s.sessions.Remove(sess.GetID())
		s.monitor.DecOnlineSessions()
		sess.Close()

		if !s.playerStillConnected(rm.ID, sess.PlayerID) {
			rm.SetPlayerConnected(sess.PlayerID, false)
		}
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		case <-sess.Done():
			return
		default:
		}

		packet, err := sess.Conn.ReadPacket()
		if err != nil {
			return
		}
		sess.Touch()
		s.monitor.IncMessagesReceived()

		start := time.Now()
		s.handlePacket(sess, ip, packet)
		s.monitor.ObserveMessageLatency(time.Since(start))
	}
}

func (s *GameServer) playerStillConnected(roomID, playerID string) bool {
	for _, other := range s.sessions.GetByPlayerID(playerID) {
		if other.RoomID == roomID {
			return true
		}
	}
	return false
}

func (s *GameServer) handlePacket(sess *session.Session, ip string, packet *network.Packet) {
	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Enqueue(network.MsgTypeHeartbeat, nil)
		return
	case network.MsgTypeChat:
		err = s.handleChat(sess, packet.Data)
		if err == nil {
			return
		}
	case network.MsgTypeStartGame, network.MsgTypeSubmitPuzzle, network.MsgTypeRequestHint,
		network.MsgTypeSubmitMeta, network.MsgTypeSubmitFinal:
		if !s.actionLimiter.Allow("action:" + ip) {
			err = ErrRateLimited
			break
		}
		var result network.ActionResult
		result, err = s.handleAction(sess, packet)
		if err == nil {
			result.MsgID = packet.MsgID
			s.sendFrame(sess, network.MsgTypeActionResult, result)
			return
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		err = payloadError("Unknown message type")
	}

	gameErr := asGameError(err)
	s.sendFrame(sess, network.MsgTypeError, network.ErrorPayload{
		MsgID:   packet.MsgID,
		Code:    gameErr.Code,
		Message: gameErr.Message,
	})
}

func (s *GameServer) handleChat(sess *session.Session, data []byte) error {
	var req network.ChatPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return payloadError("Malformed chat payload")
	}
	message, err := validateChat(req.Message)
	if err != nil {
		return err
	}
	if !s.chatLimiter.Allow("chat:" + sess.PlayerID) {
		return ErrRateLimited
	}
	return s.roomManager.SendChatMessage(sess.RoomID, sess.PlayerID, message)
}

func (s *GameServer) handleAction(sess *session.Session, packet *network.Packet) (network.ActionResult, error) {
	ok := network.ActionResult{Success: true}

	switch packet.MsgID {
	case network.MsgTypeStartGame:
		return ok, s.roomManager.StartGame(sess.RoomID)

	case network.MsgTypeSubmitPuzzle:
		var req network.PuzzlePayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return ok, payloadError("Malformed puzzle payload")
		}
		if err := validateAnswer(req.Answer); err != nil {
			return ok, err
		}
		continent, err := parseContinent(req.Continent)
		if err != nil {
			return ok, err
		}
		result, err := s.roomManager.SubmitPuzzle(sess.RoomID, continent, req.Answer, sess.PlayerID)
		s.recordSubmission("puzzle", result, err)
		if err != nil {
			return ok, err
		}
		return network.ActionResult{Success: result.Success, ErrorCode: result.ErrorCode, Message: result.Message}, nil

	case network.MsgTypeRequestHint:
		var req network.HintPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return ok, payloadError("Malformed hint payload")
		}
		continent, err := parseContinent(req.Continent)
		if err != nil {
			return ok, err
		}
		timer, err := s.roomManager.RequestHint(sess.RoomID, continent)
		s.recordOutcome("hint", err)
		if err != nil {
			return ok, err
		}
		ok.TimerSec = &timer
		return ok, nil

	case network.MsgTypeSubmitMeta, network.MsgTypeSubmitFinal:
		var req network.AnswerPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return ok, payloadError("Malformed answer payload")
		}
		if err := validateAnswer(req.Answer); err != nil {
			return ok, err
		}
		if packet.MsgID == network.MsgTypeSubmitMeta {
			err := s.roomManager.SubmitMeta(sess.RoomID, req.Answer)
			s.recordOutcome("meta", err)
			return ok, err
		}
		err := s.roomManager.SubmitFinal(sess.RoomID, req.Answer)
		s.recordOutcome("final", err)
		return ok, err
	}
	return ok, errors.New("unhandled action")
}

func (s *GameServer) sendFrame(sess *session.Session, msgID uint16, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Log.Errorf("Failed to encode frame %d: %v", msgID, err)
		return
	}
	if !sess.Enqueue(msgID, data) {
		logger.Log.Debugf("Session %s: outbox full, dropped frame %d", sess.GetID(), msgID)
	}
}
