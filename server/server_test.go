package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/atlas/broadcast"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/network"
	"github.com/wfunc/atlas/puzzle"
	"github.com/wfunc/atlas/room"
)

// answers for the content files shipped in ../content
var answers = map[models.Continent]string{
	models.Europe:     "SALUT",
	models.Asia:       "04:30",
	models.Americas:   "0004",
	models.Africa:     "2484",
	models.Oceania:    "B",
	models.Antarctica: "VOSTOK",
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	server  *GameServer
	rooms   *room.Manager
	hub     *broadcast.Hub
	clock   *testClock
	handler http.Handler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	content, err := puzzle.LoadContent("../content")
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	roomOpts := room.DefaultOptions()
	roomOpts.Now = clock.Now

	hub := broadcast.NewHub(nil)
	rooms := room.NewRoomManager(roomOpts, hub, puzzle.NewContentValidator(content, false))
	if opts.ActionsPerMinute == 0 {
		opts.ActionsPerMinute = 1000
	}
	opts.Now = clock.Now
	srv := NewGameServer(opts, rooms, hub, nil)
	return &fixture{server: srv, rooms: rooms, hub: hub, clock: clock, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createAndJoin(t *testing.T) (RoomResponse, RoomResponse) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "Alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[RoomResponse](t, rec)

	rec = f.do(t, http.MethodPost, "/api/rooms/"+created.Room.ID+"/join",
		JoinRequest{Pseudo: "Bob", JoinCode: strings.ToLower(created.Room.JoinCode)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return created, decode[RoomResponse](t, rec)
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "  Alice "})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RoomResponse](t, rec)

	assert.NotEmpty(t, resp.PlayerID)
	assert.Equal(t, models.StageBrief, resp.Room.Stage)
	assert.Equal(t, 1500, resp.Room.TimerSec)
	assert.Len(t, resp.Room.Draw, 3)
	require.Len(t, resp.Room.Players, 1)
	assert.Equal(t, "Alice", resp.Room.Players[0].Pseudo)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateRoom_Validation(t *testing.T) {
	f := newFixture(t, Options{})

	cases := map[string]interface{}{
		"blank":     CreateRoomRequest{Pseudo: "   "},
		"too long":  CreateRoomRequest{Pseudo: strings.Repeat("x", 51)},
		"malformed": "not an object",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/rooms", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodePayloadInvalid, decode[room.GameError](t, rec).Code)
		})
	}
	assert.Equal(t, 0, f.rooms.Count())
}

func TestJoinRoom_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	created, _ := f.createAndJoin(t)

	rec := f.do(t, http.MethodPost, "/api/rooms/x/join", JoinRequest{Pseudo: "Eve", JoinCode: "ABC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodePayloadInvalid, decode[room.GameError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/rooms/x/join", JoinRequest{Pseudo: "Eve", JoinCode: "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, room.ErrRoomNotFound.Code, decode[room.GameError](t, rec).Code)

	for _, p := range []string{"Carol", "Dave"} {
		rec = f.do(t, http.MethodPost, "/api/rooms/x/join", JoinRequest{Pseudo: p, JoinCode: created.Room.JoinCode})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/rooms/x/join", JoinRequest{Pseudo: "Eve", JoinCode: created.Room.JoinCode})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, room.ErrRoomFull.Code, decode[room.GameError](t, rec).Code)
}

func TestRoomState_Polling(t *testing.T) {
	f := newFixture(t, Options{})
	_, joined := f.createAndJoin(t)
	id := joined.Room.ID

	rec := f.do(t, http.MethodGet, "/api/rooms/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[models.RoomSnapshot](t, rec)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/%s/state?since=%d", id, snap.Version), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/%s/state?since=%d", id, snap.Version-1), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/rooms/"+id+"/state?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/rooms/missing/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFullGameOverREST(t *testing.T) {
	f := newFixture(t, Options{})
	created, _ := f.createAndJoin(t)
	base := "/api/rooms/" + created.Room.ID

	rec := f.do(t, http.MethodPost, base+"/puzzle/europe", SubmitRequest{Answer: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, room.ErrInvalidStage.Code, decode[room.GameError](t, rec).Code)

	rec = f.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	draw := created.Room.Draw

	// wrong answer is a 200 with the validator's error code
	rec = f.do(t, http.MethodPost, base+"/puzzle/"+string(draw[0]), SubmitRequest{Answer: "0000", PlayerID: created.PlayerID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[PuzzleResponse](t, rec).Success)

	rec = f.do(t, http.MethodPost, base+"/hint/"+strings.ToLower(string(draw[0])), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1440, decode[HintResponse](t, rec).TimerSec)

	rec = f.do(t, http.MethodPost, base+"/hint/atlantis", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, room.ErrInvalidContinent.Code, decode[room.GameError](t, rec).Code)

	for _, c := range draw {
		rec = f.do(t, http.MethodPost, base+"/puzzle/"+string(c), SubmitRequest{Answer: answers[c], PlayerID: created.PlayerID})
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, decode[PuzzleResponse](t, rec).Success, "continent %s", c)
	}

	rec = f.do(t, http.MethodPost, base+"/puzzle/"+string(draw[0]), SubmitRequest{Answer: answers[draw[0]]})
	assert.Equal(t, room.ErrInvalidStage.Code, decode[room.GameError](t, rec).Code)

	rec = f.do(t, http.MethodPost, base+"/meta", SubmitRequest{Answer: "WRONG"})
	assert.Equal(t, room.ErrMetaIncorrect.Code, decode[room.GameError](t, rec).Code)

	rec = f.do(t, http.MethodPost, base+"/meta", SubmitRequest{Answer: puzzle.DemoMetaKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/final", SubmitRequest{Answer: ""})
	assert.Equal(t, CodePayloadInvalid, decode[room.GameError](t, rec).Code)

	f.clock.Advance(10 * time.Second)
	rec = f.do(t, http.MethodPost, base+"/final", SubmitRequest{Answer: strings.ToLower(puzzle.FinalCode(draw))})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, base+"/state", nil)
	assert.Equal(t, models.StageDebrief, decode[models.RoomSnapshot](t, rec).Stage)
}

func TestRateLimit_PerClientIP(t *testing.T) {
	f := newFixture(t, Options{ActionsPerMinute: 10})

	for i := 0; i < 10; i++ {
		rec := f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "p"}, "X-Forwarded-For", "10.0.0.1, 172.16.0.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	rec := f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "p"}, "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimit, decode[room.GameError](t, rec).Code)

	// another client is unaffected
	rec = f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "p"}, "X-Forwarded-For", "10.0.0.2")
	assert.Equal(t, http.StatusOK, rec.Code)

	// polling is not limited
	rec = f.do(t, http.MethodGet, "/api/rooms/missing/state", nil, "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.clock.Advance(time.Minute)
	rec = f.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{Pseudo: "p"}, "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigin: "https://atlas.example"})
	rec := f.do(t, http.MethodOptions, "/api/rooms", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://atlas.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- WebSocket ---

type wsClient struct {
	t    *testing.T
	conn *network.WSConnection
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, playerID string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + roomID + "?playerId=" + playerID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	c := &wsClient{t: t, conn: network.NewWSConnection(ws)}
	t.Cleanup(func() { c.conn.Close() })
	return c
}

func (c *wsClient) send(msgID uint16, body interface{}) {
	data, err := json.Marshal(body)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Send(msgID, data))
}

// next reads frames until one matches msgID, skipping others.
func (c *wsClient) next(msgID uint16, match func([]byte) bool) []byte {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.conn.SetHeartbeat(time.Second)
		p, err := c.conn.ReadPacket()
		require.NoError(c.t, err)
		if p.MsgID == msgID && (match == nil || match(p.Data)) {
			return p.Data
		}
	}
	c.t.Fatalf("no frame %d received", msgID)
	return nil
}

func eventOf(eventType models.EventType) func([]byte) bool {
	return func(data []byte) bool {
		var ev models.Event
		return json.Unmarshal(data, &ev) == nil && ev.Type == eventType
	}
}

func TestWebSocket_RejectsUnknownPlayer(t *testing.T) {
	f := newFixture(t, Options{})
	created, _ := f.createAndJoin(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + created.Room.ID + "?playerId=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing?playerId=x"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_EventsAndActions(t *testing.T) {
	f := newFixture(t, Options{ChatPer10s: 2})
	created, joined := f.createAndJoin(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	alice := dialRoom(t, srv, created.Room.ID, created.PlayerID)
	alice.next(network.MsgTypeRoomEvent, eventOf(models.EventSnapshot))
	bob := dialRoom(t, srv, created.Room.ID, joined.PlayerID)
	bob.next(network.MsgTypeRoomEvent, eventOf(models.EventSnapshot))

	require.Eventually(t, func() bool { return f.hub.SubscriberCount(created.Room.ID) == 2 }, time.Second, 10*time.Millisecond)

	// chat fan-out
	alice.send(network.MsgTypeChat, network.ChatPayload{Message: "hello"})
	data := bob.next(network.MsgTypeRoomEvent, eventOf(models.EventChat))
	var chat models.Event
	require.NoError(t, json.Unmarshal(data, &chat))
	assert.Equal(t, "Alice", chat.Pseudo)
	assert.Equal(t, "hello", chat.Message)

	// chat limit is per player
	alice.send(network.MsgTypeChat, network.ChatPayload{Message: "two"})
	alice.send(network.MsgTypeChat, network.ChatPayload{Message: "three"})
	data = alice.next(network.MsgTypeError, nil)
	var errFrame network.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &errFrame))
	assert.Equal(t, CodeRateLimit, errFrame.Code)

	alice.send(network.MsgTypeChat, network.ChatPayload{Message: ""})
	data = alice.next(network.MsgTypeError, nil)
	require.NoError(t, json.Unmarshal(data, &errFrame))
	assert.Equal(t, CodePayloadInvalid, errFrame.Code)

	// actions
	bob.send(network.MsgTypeStartGame, struct{}{})
	bob.next(network.MsgTypeActionResult, nil)
	alice.next(network.MsgTypeRoomEvent, eventOf(models.EventStageChange))

	c := created.Room.Draw[0]
	alice.send(network.MsgTypeSubmitPuzzle, network.PuzzlePayload{Continent: string(c), Answer: answers[c]})
	data = alice.next(network.MsgTypeActionResult, nil)
	var result network.ActionResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, uint16(network.MsgTypeSubmitPuzzle), result.MsgID)
	bob.next(network.MsgTypeRoomEvent, eventOf(models.EventPuzzleResult))

	alice.send(network.MsgTypeSubmitPuzzle, network.PuzzlePayload{Continent: string(c), Answer: answers[c]})
	data = alice.next(network.MsgTypeError, nil)
	require.NoError(t, json.Unmarshal(data, &errFrame))
	assert.Equal(t, room.ErrAlreadySolved.Code, errFrame.Code)

	alice.send(network.MsgTypeRequestHint, network.HintPayload{Continent: string(created.Room.Draw[1])})
	data = alice.next(network.MsgTypeActionResult, nil)
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotNil(t, result.TimerSec)
	assert.Equal(t, 1440, *result.TimerSec)
}

func TestWebSocket_ConnectedFlag(t *testing.T) {
	f := newFixture(t, Options{})
	created, _ := f.createAndJoin(t)
	rm, err := f.rooms.GetRoom(created.Room.ID)
	require.NoError(t, err)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	c := dialRoom(t, srv, created.Room.ID, created.PlayerID)
	c.next(network.MsgTypeRoomEvent, eventOf(models.EventSnapshot))
	c.conn.Close()

	require.Eventually(t, func() bool {
		for _, p := range rm.Snapshot().Players {
			if p.ID == created.PlayerID {
				return !p.Connected
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.hub.SubscriberCount(created.Room.ID))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestKeyedLimiter_Prune(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	l := newKeyedLimiter(2, time.Second, clock.Now)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	clock.Advance(time.Minute)
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 1, l.Prune(30*time.Second))
	assert.Equal(t, 1, l.Len())
}
