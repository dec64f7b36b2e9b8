// room/game.go
package room

import (
	"time"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/puzzle"
)

// UnknownPseudo is the chat sender name used when the player id is not in the room.
const UnknownPseudo = "Unknown"

// join 添加玩家，满员时返回 ErrRoomFull
func (r *Room) join(player models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if len(r.players) >= r.opts.MaxPlayers {
		return ErrRoomFull
	}

	r.players = append(r.players, player)
	r.touch()
	r.publishSnapshot()
	return nil
}

// StartGame BRIEF -> PLAY，至少需要 MinPlayers 名玩家
func (r *Room) StartGame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if r.stateMachine.GetCurrentState() != models.StageBrief {
		return ErrInvalidStage
	}
	if len(r.players) < r.opts.MinPlayers {
		return ErrNotEnoughPlayers
	}
	return r.changeStage(models.StagePlay)
}

// SubmitPuzzle 提交某个大洲的答案。
// 校验失败不是状态变更：只广播 PUZZLE_RESULT(success=false)，返回的 Result 携带错误码，error 为 nil。
func (r *Room) SubmitPuzzle(continent models.Continent, answer, playerID string) (puzzle.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return puzzle.Result{}, ErrRoomNotFound
	}
	if r.stateMachine.GetCurrentState() != models.StagePlay {
		return puzzle.Result{}, ErrInvalidStage
	}
	if !r.isDrawn(continent) {
		return puzzle.Result{}, ErrInvalidContinent
	}
	key := continent.Key()
	if r.solved[key] {
		return puzzle.Result{}, ErrAlreadySolved
	}

	result := r.validator.Validate(continent, answer)
	if !result.Success {
		if result.ErrorCode == "" {
			result.ErrorCode = puzzle.ErrDataUnavailable
		}
		r.publish(models.PuzzleResultEvent(continent, false, result.ErrorCode))
		return result, nil
	}

	r.solved[key] = true
	r.fragments[continent.FragmentSlot()] = result.Fragment
	r.touch()
	r.publish(models.PuzzleResultEvent(continent, true, ""))
	r.publishSnapshot()
	logger.Log.Infof("Room %s: %s solved by player %s", r.ID, continent, playerID)

	if r.allSolved() {
		if err := r.changeStage(models.StageMeta); err != nil {
			logger.Log.Errorf("Room %s: all puzzles solved but META transition failed: %v", r.ID, err)
		}
	}
	return result, nil
}

// RequestHint 扣除 HintPenaltySec 秒（不低于0）。不检查阶段。
func (r *Room) RequestHint(continent models.Continent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomNotFound
	}
	if !r.isDrawn(continent) {
		return 0, ErrInvalidContinent
	}
	key := continent.Key()
	if r.hintsUsed[key] >= r.opts.MaxHints {
		return 0, ErrMaxHintsReached
	}

	r.hintsUsed[key]++
	r.timerSec = max(0, r.timerSec-r.opts.HintPenaltySec)
	r.touch()
	r.publish(models.HintGrantedEvent(continent, r.timerSec))
	r.publishSnapshot()
	logger.Log.Infof("Room %s: hint %d granted for %s, timer now %ds", r.ID, r.hintsUsed[key], continent, r.timerSec)
	return r.timerSec, nil
}

// SubmitMeta META -> FINAL，开启最终拆弹窗口
func (r *Room) SubmitMeta(answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if r.stateMachine.GetCurrentState() != models.StageMeta {
		return ErrInvalidStage
	}

	fragments := make(map[string]string, len(r.fragments))
	for k, v := range r.fragments {
		fragments[k] = v
	}
	if !r.validator.ValidateMeta(answer, fragments) {
		return ErrMetaIncorrect
	}
	return r.changeStage(models.StageFinal)
}

// SubmitFinal FINAL -> DEBRIEF。
// 已用时间按整秒截断，超过 FinalWindow 时房间同样进入 DEBRIEF 并广播失败结果，同时返回 ErrFinalTimeout。
func (r *Room) SubmitFinal(answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if r.stateMachine.GetCurrentState() != models.StageFinal {
		return ErrInvalidStage
	}

	if r.finalStartedAt != nil && r.opts.Now().Sub(*r.finalStartedAt).Truncate(time.Second) > r.opts.FinalWindow {
		if err := r.setStage(models.StageDebrief); err != nil {
			return err
		}
		r.publish(models.FinalResultEvent(false))
		r.publishSnapshot()
		return ErrFinalTimeout
	}

	if !r.validator.ValidateFinal(answer, append([]models.Continent(nil), r.draw...)) {
		return ErrFinalIncorrect
	}
	if err := r.setStage(models.StageDebrief); err != nil {
		return err
	}
	r.publish(models.FinalResultEvent(true))
	r.publishSnapshot()
	logger.Log.Infof("Room %s: bomb disarmed", r.ID)
	return nil
}

// SendChatMessage 聊天不是游戏状态，不修改 version
func (r *Room) SendChatMessage(playerID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}

	pseudo := UnknownPseudo
	for _, p := range r.players {
		if p.ID == playerID {
			pseudo = p.Pseudo
			break
		}
	}
	r.publish(models.ChatEvent(playerID, pseudo, message, r.opts.Now().UnixMilli()))
	return nil
}

// SetPlayerConnected updates the connected flag; a change is a versioned mutation.
func (r *Room) SetPlayerConnected(playerID string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	for i := range r.players {
		if r.players[i].ID != playerID {
			continue
		}
		if r.players[i].Connected == connected {
			return nil
		}
		r.players[i].Connected = connected
		r.touch()
		r.publishSnapshot()
		return nil
	}
	return nil
}

// HasPlayer 判断玩家是否在房间中
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Tick 倒计时减一秒。只在 PLAY/META 且 timerSec > 0 时生效，归零时强制进入 DEBRIEF。
// 被提示扣到 0 的房间不再递减，直接结束。返回是否发生了递减。
func (r *Room) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.stateMachine.GetCurrentState().TimerRunning() {
		return false
	}
	if r.timerSec <= 0 {
		logger.Log.Infof("Room %s: timer drained in %s", r.ID, r.stateMachine.GetCurrentState())
		if err := r.changeStage(models.StageDebrief); err != nil {
			logger.Log.Errorf("Room %s: timeout transition failed: %v", r.ID, err)
		}
		return false
	}

	r.timerSec--
	r.publish(models.TimerTickEvent(r.timerSec))

	if r.timerSec == 0 {
		logger.Log.Infof("Room %s: timer expired in %s", r.ID, r.stateMachine.GetCurrentState())
		if err := r.changeStage(models.StageDebrief); err != nil {
			logger.Log.Errorf("Room %s: timeout transition failed: %v", r.ID, err)
		}
	}
	return true
}
