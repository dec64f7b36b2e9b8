// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/puzzle"
	"github.com/wfunc/atlas/state"
)

// Room 是游戏房间的核心结构。所有字段由 mu 保护，只能通过房间方法修改。
type Room struct {
	ID       string
	JoinCode string

	mu             sync.Mutex
	stateMachine   state.StateMachine
	timerSec       int
	draw           []models.Continent
	solved         map[string]bool
	hintsUsed      map[string]int
	fragments      map[string]string
	players        []models.Player
	version        int64
	createdAt      time.Time
	lastActivity   time.Time
	finalStartedAt *time.Time
	closed         bool

	opts        Options
	broadcaster Broadcaster
	validator   puzzle.Validator
}

// NewRoom 创建一个新房间，solved/hintsUsed 按抽取的大洲初始化
func NewRoom(id, joinCode string, draw []models.Continent, creator models.Player, opts Options, broadcaster Broadcaster, validator puzzle.Validator) *Room {
	opts = opts.withDefaults()
	now := opts.Now()

	r := &Room{
		ID:           id,
		JoinCode:     joinCode,
		timerSec:     opts.InitialTimerSec,
		draw:         append([]models.Continent(nil), draw...),
		solved:       make(map[string]bool, len(draw)),
		hintsUsed:    make(map[string]int, len(draw)),
		fragments:    make(map[string]string),
		players:      []models.Player{creator},
		createdAt:    now,
		lastActivity: now,
		opts:         opts,
		broadcaster:  broadcaster,
		validator:    validator,
	}
	for _, c := range r.draw {
		r.solved[c.Key()] = false
		r.hintsUsed[c.Key()] = 0
	}

	r.stateMachine = state.NewStageMachine(r.allSolved)
	r.stateMachine.OnEnter(models.StageFinal, func() {
		startedAt := r.opts.Now()
		r.finalStartedAt = &startedAt
	})
	return r
}

// --- 快照与只读访问 ---

// Snapshot returns a deep copy of the room state.
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() models.RoomSnapshot {
	s := models.RoomSnapshot{
		ID:           r.ID,
		JoinCode:     r.JoinCode,
		Stage:        r.stateMachine.GetCurrentState(),
		TimerSec:     r.timerSec,
		Draw:         append([]models.Continent(nil), r.draw...),
		Solved:       make(map[string]bool, len(r.solved)),
		HintsUsed:    make(map[string]int, len(r.hintsUsed)),
		Fragments:    make(map[string]string, len(r.fragments)),
		Players:      append([]models.Player(nil), r.players...),
		Version:      r.version,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
	for k, v := range r.solved {
		s.Solved[k] = v
	}
	for k, v := range r.hintsUsed {
		s.HintsUsed[k] = v
	}
	for k, v := range r.fragments {
		s.Fragments[k] = v
	}
	if r.finalStartedAt != nil {
		t := *r.finalStartedAt
		s.FinalStartedAt = &t
	}
	return s
}

func (r *Room) Stage() models.Stage {
	return r.stateMachine.GetCurrentState()
}

func (r *Room) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// IdleBefore reports whether the last activity precedes cutoff.
func (r *Room) IdleBefore(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity.Before(cutoff)
}

// PlayerCount 返回当前玩家数量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// --- 内部工具 ---

func (r *Room) allSolved() bool {
	for _, s := range r.solved {
		if !s {
			return false
		}
	}
	return true
}

func (r *Room) isDrawn(c models.Continent) bool {
	_, ok := r.solved[c.Key()]
	return c.Valid() && ok
}

// touch 记录一次对外可见的状态变更
func (r *Room) touch() {
	r.version++
	r.lastActivity = r.opts.Now()
}

func (r *Room) publish(events ...models.Event) {
	if r.broadcaster == nil {
		return
	}
	for _, ev := range events {
		if err := r.broadcaster.BroadcastToRoom(r.ID, ev); err != nil {
			logger.Log.Debugf("Room %s: broadcast %s failed: %v", r.ID, ev.Type, err)
		}
	}
}

func (r *Room) publishSnapshot() {
	r.publish(models.SnapshotEvent(r.snapshotLocked()))
}

// changeStage 切换阶段并广播 STAGE_CHANGE + SNAPSHOT
func (r *Room) changeStage(to models.Stage) error {
	if err := r.setStage(to); err != nil {
		return err
	}
	r.publish(models.StageChangeEvent(to))
	r.publishSnapshot()
	return nil
}

// setStage 切换阶段但不广播
func (r *Room) setStage(to models.Stage) error {
	from := r.stateMachine.GetCurrentState()
	if err := r.stateMachine.ChangeState(to); err != nil {
		return ErrInvalidStage
	}
	r.touch()
	logger.Log.Infof("Room %s: stage %s -> %s", r.ID, from, to)
	return nil
}

// close 标记房间已移除，之后的所有操作返回 ErrRoomNotFound
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// closeIfIdle closes the room only if it has been idle since cutoff.
func (r *Room) closeIfIdle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.lastActivity.Before(cutoff) {
		return false
	}
	r.closed = true
	return true
}
