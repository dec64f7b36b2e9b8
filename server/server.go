package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/wfunc/atlas/broadcast"
	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/monitor"
	"github.com/wfunc/atlas/room"
	"github.com/wfunc/atlas/session"
)

type Options struct {
	Addr             string
	AllowedOrigin    string
	ActionsPerMinute int
	ChatPer10s       int
	Heartbeat        time.Duration
	// Now 限流器的时间源，测试用
	Now func() time.Time
}

type GameServer struct {
	opts          Options
	upgrader      websocket.Upgrader
	roomManager   *room.Manager
	hub           *broadcast.Hub
	sessions      *session.Manager
	monitor       *monitor.Monitor
	actionLimiter *keyedLimiter
	chatLimiter   *keyedLimiter
	httpServer    *http.Server
	shutdownChan  chan struct{}
	shutdownOnce  sync.Once
}

func NewGameServer(opts Options, rooms *room.Manager, hub *broadcast.Hub, mon *monitor.Monitor) *GameServer {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.ActionsPerMinute <= 0 {
		opts.ActionsPerMinute = 10
	}
	if opts.ChatPer10s <= 0 {
		opts.ChatPer10s = 8
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &GameServer{
		opts:          opts,
		roomManager:   rooms,
		hub:           hub,
		sessions:      session.NewManager(),
		monitor:       mon,
		actionLimiter: newKeyedLimiter(opts.ActionsPerMinute, time.Minute, opts.Now),
		chatLimiter:   newKeyedLimiter(opts.ChatPer10s, 10*time.Second, opts.Now),
		shutdownChan:  make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	return s
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	if s.opts.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.opts.AllowedOrigin
}

// Handler 注册所有 REST 和 WebSocket 路由
func (s *GameServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)

	api := r.PathPrefix("/api/rooms").Subrouter()
	api.HandleFunc("", s.handleCreateRoom).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/join", s.handleJoinRoom).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/state", s.handleRoomState).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{roomId}/start", s.handleStartGame).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/puzzle/{continent}", s.handleSubmitPuzzle).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/hint/{continent}", s.handleRequestHint).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/meta", s.handleSubmitMeta).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{roomId}/final", s.handleSubmitFinal).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/ws/{roomId}", s.handleWebSocket)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"rooms": s.roomManager.Count()})
	})
	return r
}

// CORS middleware
func (s *GameServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Forwarded-For")

		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *GameServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneLimiters()

	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// pruneLimiters 定期清理不再活跃的限流 key
func (s *GameServer) pruneLimiters() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			s.actionLimiter.Prune(10 * time.Minute)
			s.chatLimiter.Prune(10 * time.Minute)
		}
	}
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})
	// 被 hijack 的 WebSocket 连接不受 http.Server.Shutdown 管理
	for _, sess := range s.sessions.All() {
		sess.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// CloseRoom 房间回收后断开其 WebSocket 订阅
func (s *GameServer) CloseRoom(roomID string) {
	s.hub.CloseRoom(roomID)
}
