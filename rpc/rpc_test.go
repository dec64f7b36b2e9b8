package rpc

import (
	"context"
	"encoding/json"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/persistence"
	"github.com/wfunc/atlas/puzzle"
	"github.com/wfunc/atlas/room"
)

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom(string, models.Event) error { return nil }

func startServer(t *testing.T, svc *RoomService) *rpc.Client {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0", svc)
	require.NoError(t, err)
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRoomService(t *testing.T) {
	manager := room.NewRoomManager(room.DefaultOptions(), nopBroadcaster{}, puzzle.NewContentValidator(nil, false))
	brief, _ := manager.CreateRoom("Alice")
	playing, _ := manager.CreateRoom("Bob")
	_, _, err := manager.JoinRoom(playing.JoinCode, "Carol")
	require.NoError(t, err)
	require.NoError(t, manager.StartGame(playing.ID))

	store, err := persistence.NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)
	client := startServer(t, NewRoomService(manager, store))

	t.Run("GetRoom", func(t *testing.T) {
		var reply GetRoomReply
		require.NoError(t, client.Call("RoomService.GetRoom", &GetRoomArgs{RoomID: brief.ID}, &reply))
		assert.True(t, reply.Live)
		assert.Equal(t, brief.JoinCode, reply.Room.JoinCode)
		assert.Len(t, reply.Room.Draw, 3)
	})

	t.Run("GetRoomMissing", func(t *testing.T) {
		var reply GetRoomReply
		err := client.Call("RoomService.GetRoom", &GetRoomArgs{RoomID: "nope"}, &reply)
		require.Error(t, err)
		assert.Contains(t, err.Error(), room.ErrRoomNotFound.Code)
	})

	t.Run("GetRoomFromStore", func(t *testing.T) {
		snap := playing.Snapshot()
		require.NoError(t, store.SaveRoom(context.Background(), snap))
		require.True(t, manager.RemoveRoom(playing.ID))

		var reply GetRoomReply
		require.NoError(t, client.Call("RoomService.GetRoom", &GetRoomArgs{RoomID: playing.ID}, &reply))
		assert.False(t, reply.Live)
		assert.Equal(t, snap.Version, reply.Room.Version)
		assert.Equal(t, models.StagePlay, reply.Room.Stage)
	})

	t.Run("ListRooms", func(t *testing.T) {
		var reply ListRoomsReply
		require.NoError(t, client.Call("RoomService.ListRooms", &ListRoomsArgs{}, &reply))
		require.Len(t, reply.Rooms, 1)
		assert.Equal(t, brief.ID, reply.Rooms[0].ID)
		assert.Equal(t, 1, reply.Rooms[0].Players)

		var filtered ListRoomsReply
		require.NoError(t, client.Call("RoomService.ListRooms", &ListRoomsArgs{Stage: models.StagePlay}, &filtered))
		assert.Empty(t, filtered.Rooms)
	})
}

// stageStore serves canned rows for RoomsByStage.
type stageStore struct {
	persistence.NopSnapshotStore
	rows      []models.GormRoomSnapshot
	lastStage models.Stage
	lastLimit int
}

func (s *stageStore) RoomsByStage(ctx context.Context, stage models.Stage, limit int) ([]models.GormRoomSnapshot, error) {
	s.lastStage, s.lastLimit = stage, limit
	return s.rows, nil
}

func TestRoomService_ListExported(t *testing.T) {
	manager := room.NewRoomManager(room.DefaultOptions(), nopBroadcaster{}, puzzle.NewContentValidator(nil, false))

	data, err := json.Marshal(models.RoomSnapshot{
		ID:       "gone",
		Stage:    models.StageDebrief,
		TimerSec: 120,
		Players:  []models.Player{{ID: "p1", Pseudo: "Alice"}, {ID: "p2", Pseudo: "Bob"}},
	})
	require.NoError(t, err)
	active := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &stageStore{rows: []models.GormRoomSnapshot{{
		RoomID: "gone", JoinCode: "ABC123", Stage: string(models.StageDebrief),
		Version: 9, Data: data, LastActivity: active,
	}}}
	client := startServer(t, NewRoomService(manager, store))

	var reply ListRoomsReply
	require.NoError(t, client.Call("RoomService.ListExported", &ListExportedArgs{Stage: models.StageDebrief}, &reply))
	require.Len(t, reply.Rooms, 1)
	assert.Equal(t, RoomSummary{
		ID: "gone", JoinCode: "ABC123", Stage: models.StageDebrief,
		TimerSec: 120, Players: 2, Version: 9, LastActivity: active,
	}, reply.Rooms[0])
	assert.Equal(t, models.StageDebrief, store.lastStage)
	assert.Equal(t, 50, store.lastLimit)
}

func TestRoomService_ListExportedUnsupported(t *testing.T) {
	manager := room.NewRoomManager(room.DefaultOptions(), nopBroadcaster{}, puzzle.NewContentValidator(nil, false))
	store, err := persistence.NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)
	client := startServer(t, NewRoomService(manager, store))

	var reply ListRoomsReply
	err = client.Call("RoomService.ListExported", &ListExportedArgs{Stage: models.StagePlay}, &reply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), persistence.ErrStageUnsupported.Error())
}
