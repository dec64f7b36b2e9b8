// models/stage.go
package models

// Stage 房间所处的游戏阶段
type Stage string

const (
	StageBrief   Stage = "BRIEF"
	StagePlay    Stage = "PLAY"
	StageMeta    Stage = "META"
	StageFinal   Stage = "FINAL"
	StageDebrief Stage = "DEBRIEF"
)

// TimerRunning reports whether the countdown advances in this stage.
func (s Stage) TimerRunning() bool {
	return s == StagePlay || s == StageMeta
}
