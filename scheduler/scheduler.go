// scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/monitor"
	"github.com/wfunc/atlas/persistence"
	"github.com/wfunc/atlas/room"
	"github.com/wfunc/atlas/timer"
)

type Config struct {
	TickInterval     time.Duration
	SnapshotInterval time.Duration
	CleanupInterval  time.Duration
	RoomTTL          time.Duration
	SnapshotTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		SnapshotInterval: 10 * time.Second,
		CleanupInterval:  time.Minute,
		RoomTTL:          30 * time.Minute,
		SnapshotTimeout:  5 * time.Second,
	}
}

// Scheduler 驱动所有房间的倒计时、快照导出和空闲回收
type Scheduler struct {
	rooms    *room.Manager
	store    persistence.SnapshotStore
	timers   *timer.TimerManager
	monitor  *monitor.Monitor
	cfg      Config
	now      func() time.Time
	onRemove func(roomID string)
}

type Option func(*Scheduler)

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Scheduler) { s.monitor = m }
}

// OnRemove 房间被回收后回调，用来断开订阅者
func OnRemove(fn func(roomID string)) Option {
	return func(s *Scheduler) { s.onRemove = fn }
}

func New(rooms *room.Manager, store persistence.SnapshotStore, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = def.SnapshotInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = def.RoomTTL
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = def.SnapshotTimeout
	}
	if store == nil {
		store = persistence.NopSnapshotStore{}
	}

	s := &Scheduler{
		rooms: rooms,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 注册三个周期任务
func (s *Scheduler) Start() {
	s.timers = timer.NewTimerManagerWithResolution(min(s.cfg.TickInterval/10, timer.DefaultResolution))
	s.timers.AddTimer(s.cfg.TickInterval, s.cfg.TickInterval, s.TickAll)
	s.timers.AddTimer(s.cfg.SnapshotInterval, s.cfg.SnapshotInterval, func() {
		s.ExportSnapshots(context.Background())
	})
	s.timers.AddTimer(s.cfg.CleanupInterval, s.cfg.CleanupInterval, func() {
		s.Cleanup()
	})
	logger.Log.Infof("Scheduler started: tick=%s snapshot=%s cleanup=%s ttl=%s",
		s.cfg.TickInterval, s.cfg.SnapshotInterval, s.cfg.CleanupInterval, s.cfg.RoomTTL)
}

// Stop 停止调度，最后导出一次快照
func (s *Scheduler) Stop(ctx context.Context) {
	if s.timers != nil {
		s.timers.Stop()
	}
	s.ExportSnapshots(ctx)
}

// TickAll 每个房间各自加锁递减，一个房间不会阻塞其他房间
func (s *Scheduler) TickAll() {
	start := time.Now()
	rooms := s.rooms.Rooms()
	for _, r := range rooms {
		r.Tick()
	}
	s.monitor.ObserveTick(time.Since(start))
	s.monitor.SetActiveRooms(len(rooms))
}

// ExportSnapshots 每个房间都导出一次，与阶段和活跃度无关。
// 写存储时不持有任何房间锁，失败只记日志，下一轮自然重试。
func (s *Scheduler) ExportSnapshots(ctx context.Context) int {
	saved := 0
	for _, r := range s.rooms.Rooms() {
		snap := r.Snapshot()

		saveCtx, cancel := context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
		err := s.store.SaveRoom(saveCtx, snap)
		cancel()
		if err != nil {
			logger.Log.Errorf("Room %s: snapshot export failed: %v", snap.ID, err)
			s.monitor.IncSnapshotErrors()
			continue
		}
		saved++
	}
	return saved
}

// Cleanup 回收 lastActivity 早于 now-RoomTTL 的房间，返回回收数量
func (s *Scheduler) Cleanup() int {
	cutoff := s.now().Add(-s.cfg.RoomTTL)
	removed := 0
	for _, r := range s.rooms.Rooms() {
		if !r.IdleBefore(cutoff) {
			continue
		}
		if !s.rooms.RemoveIfIdle(r.ID, cutoff) {
			continue
		}
		removed++
		logger.Log.Infof("Room %s (%s) removed after inactivity", r.ID, r.JoinCode)

		if s.onRemove != nil {
			s.onRemove(r.ID)
		}
	}
	if removed > 0 {
		s.monitor.SetActiveRooms(s.rooms.Count())
	}
	return removed
}
