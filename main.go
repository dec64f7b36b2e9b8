package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/atlas/broadcast"
	"github.com/wfunc/atlas/config"
	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/monitor"
	"github.com/wfunc/atlas/persistence"
	"github.com/wfunc/atlas/puzzle"
	"github.com/wfunc/atlas/room"
	"github.com/wfunc/atlas/rpc"
	"github.com/wfunc/atlas/scheduler"
	"github.com/wfunc/atlas/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	// 内容文件缺失时对应谜题返回 E_DATA_UNAVAILABLE，服务照常启动
	content, err := puzzle.LoadContent(cfg.Game.ContentDir)
	if err != nil {
		logger.Log.Warnf("Puzzle content incomplete: %v", err)
	}
	validator := puzzle.NewContentValidator(content, cfg.Game.DemoMode)

	mon := monitor.NewMonitor("atlas")
	hub := broadcast.NewHub(mon)

	roomManager := room.NewRoomManager(room.Options{
		InitialTimerSec: cfg.Game.InitialTimerSec,
		MaxPlayers:      cfg.Game.MaxPlayers,
		MinPlayers:      cfg.Game.MinPlayers,
		HintPenaltySec:  cfg.Game.HintPenaltySec,
		MaxHints:        cfg.Game.MaxHints,
		FinalWindow:     cfg.Game.FinalWindow,
	}, hub, validator)

	// Initialize snapshot store
	pg := cfg.Database.Postgres
	store, err := persistence.Open(cfg.Snapshot.Driver, cfg.Snapshot.Dir,
		persistence.PostgresDSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName))
	if err != nil {
		logger.Log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Snapshot store: %s", cfg.Snapshot.Driver)

	gameServer := server.NewGameServer(server.Options{
		Addr:             cfg.Server.HTTPAddress,
		AllowedOrigin:    cfg.Server.AllowedOrigin,
		ActionsPerMinute: cfg.RateLimit.ActionsPerMinute,
		ChatPer10s:       cfg.RateLimit.ChatPer10s,
	}, roomManager, hub, mon)

	sched := scheduler.New(roomManager, store, scheduler.Config{
		TickInterval:     cfg.Scheduler.TickInterval,
		SnapshotInterval: cfg.Scheduler.SnapshotInterval,
		CleanupInterval:  cfg.Scheduler.CleanupInterval,
		RoomTTL:          cfg.Game.RoomTTL,
	}, scheduler.WithMonitor(mon), scheduler.OnRemove(gameServer.CloseRoom))
	sched.Start()

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewRoomService(roomManager, store))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()

	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)
	logger.Log.Infof("Metrics on %s/metrics", cfg.Server.MetricsAddress)

	// Start Server
	errChan := make(chan error, 1)
	go func() {
		errChan <- gameServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Log.Infof("Received %s, shutting down", sig)
	case err := <-errChan:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Warnf("HTTP shutdown: %v", err)
	}
	rpcServer.Stop()
	sched.Stop(ctx)
	metricsServer.Shutdown(ctx)
	logger.Log.Info("Shutdown complete")
}
