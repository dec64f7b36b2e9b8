package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/rpc"
	"sort"
	"time"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/persistence"
	"github.com/wfunc/atlas/room"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server with the given services registered.
func NewServer(addr string, services ...interface{}) (*Server, error) {
	srv := rpc.NewServer()
	for _, svc := range services {
		if err := srv.Register(svc); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RoomService exposes read-only room inspection for operator tooling.
type RoomService struct {
	rooms *room.Manager
	store persistence.SnapshotStore
}

func NewRoomService(rooms *room.Manager, store persistence.SnapshotStore) *RoomService {
	if store == nil {
		store = persistence.NopSnapshotStore{}
	}
	return &RoomService{rooms: rooms, store: store}
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room models.RoomSnapshot
	// Live is false when the room was served from the snapshot store.
	Live bool
}

// GetRoom returns the live room, or its last exported snapshot once it has been removed.
func (rs *RoomService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	if r, err := rs.rooms.GetRoom(args.RoomID); err == nil {
		reply.Room = r.Snapshot()
		reply.Live = true
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := rs.store.LoadRoom(ctx, args.RoomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return room.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	reply.Room = snap
	return nil
}

type ListRoomsArgs struct {
	// Stage filters by stage when non-empty.
	Stage models.Stage
}

type RoomSummary struct {
	ID           string
	JoinCode     string
	Stage        models.Stage
	TimerSec     int
	Players      int
	Version      int64
	LastActivity time.Time
}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

func (rs *RoomService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range rs.rooms.Rooms() {
		s := r.Snapshot()
		if args.Stage != "" && s.Stage != args.Stage {
			continue
		}
		reply.Rooms = append(reply.Rooms, RoomSummary{
			ID:           s.ID,
			JoinCode:     s.JoinCode,
			Stage:        s.Stage,
			TimerSec:     s.TimerSec,
			Players:      len(s.Players),
			Version:      s.Version,
			LastActivity: s.LastActivity,
		})
	}
	sort.Slice(reply.Rooms, func(i, j int) bool {
		return reply.Rooms[i].LastActivity.After(reply.Rooms[j].LastActivity)
	})
	return nil
}

type ListExportedArgs struct {
	Stage models.Stage
	// Limit defaults to 50.
	Limit int
}

// ListExported 查询快照存储中某阶段的房间，包括已经被清理出内存的房间。
// 存储不支持按阶段查询时返回 persistence.ErrStageUnsupported。
func (rs *RoomService) ListExported(args *ListExportedArgs, reply *ListRoomsReply) error {
	lister, ok := rs.store.(persistence.StageLister)
	if !ok {
		return persistence.ErrStageUnsupported
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := lister.RoomsByStage(ctx, args.Stage, limit)
	if err != nil {
		return err
	}

	for _, row := range rows {
		summary := RoomSummary{
			ID:           row.RoomID,
			JoinCode:     row.JoinCode,
			Stage:        models.Stage(row.Stage),
			Version:      row.Version,
			LastActivity: row.LastActivity,
		}
		var snap models.RoomSnapshot
		if err := json.Unmarshal(row.Data, &snap); err == nil {
			summary.TimerSec = snap.TimerSec
			summary.Players = len(snap.Players)
		} else {
			logger.Log.Warnf("Room %s: undecodable exported snapshot: %v", row.RoomID, err)
		}
		reply.Rooms = append(reply.Rooms, summary)
	}
	return nil
}
