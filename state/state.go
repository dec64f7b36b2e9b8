package state

import (
	"errors"
	"sync"

	"github.com/wfunc/atlas/models"
)

// 状态机接口
type StateMachine interface {
	ChangeState(to models.Stage) error
	GetCurrentState() models.Stage
	AddTransition(from, to models.Stage, condition func() bool) error
	OnEnter(stage models.Stage, hook func())
}

var _ StateMachine = (*BaseStateMachine)(nil)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现：只允许登记过的转换
type BaseStateMachine struct {
	currentState models.Stage
	transitions  map[models.Stage]map[models.Stage]func() bool // fromState -> toState -> condition
	onEnter      map[models.Stage]func()
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState models.Stage) *BaseStateMachine {
	return &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[models.Stage]map[models.Stage]func() bool),
		onEnter:      make(map[models.Stage]func()),
	}
}

func (sm *BaseStateMachine) ChangeState(to models.Stage) error {
	sm.mutex.Lock()

	conditions, exists := sm.transitions[sm.currentState]
	if !exists {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}

	sm.currentState = to
	hook := sm.onEnter[to]
	sm.mutex.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() models.Stage {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// AddTransition registers from -> to. A nil condition always allows the transition.
func (sm *BaseStateMachine) AddTransition(from, to models.Stage, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.Stage]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// OnEnter registers a hook run after the machine enters stage.
func (sm *BaseStateMachine) OnEnter(stage models.Stage, hook func()) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.onEnter[stage] = hook
}

// NewStageMachine 创建房间阶段状态机：
// BRIEF -> PLAY -> META -> FINAL -> DEBRIEF，PLAY/META 超时直接进入 DEBRIEF
func NewStageMachine(allSolved func() bool) StateMachine {
	sm := NewBaseStateMachine(models.StageBrief)
	sm.AddTransition(models.StageBrief, models.StagePlay, nil)
	sm.AddTransition(models.StagePlay, models.StageMeta, allSolved)
	sm.AddTransition(models.StagePlay, models.StageDebrief, nil)
	sm.AddTransition(models.StageMeta, models.StageFinal, nil)
	sm.AddTransition(models.StageMeta, models.StageDebrief, nil)
	sm.AddTransition(models.StageFinal, models.StageDebrief, nil)
	return sm
}
