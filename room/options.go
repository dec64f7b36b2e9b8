package room

import "time"

// Options 房间规则参数
type Options struct {
	InitialTimerSec int
	MaxPlayers      int
	MinPlayers      int
	HintPenaltySec  int
	MaxHints        int
	FinalWindow     time.Duration
	// Now is the clock used for activity, chat and final-window timestamps.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		InitialTimerSec: 1500,
		MaxPlayers:      4,
		MinPlayers:      2,
		HintPenaltySec:  60,
		MaxHints:        2,
		FinalWindow:     30 * time.Second,
		Now:             time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialTimerSec <= 0 {
		o.InitialTimerSec = d.InitialTimerSec
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = d.MaxPlayers
	}
	if o.MinPlayers <= 0 {
		o.MinPlayers = d.MinPlayers
	}
	if o.HintPenaltySec <= 0 {
		o.HintPenaltySec = d.HintPenaltySec
	}
	if o.MaxHints <= 0 {
		o.MaxHints = d.MaxHints
	}
	if o.FinalWindow <= 0 {
		o.FinalWindow = d.FinalWindow
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}
