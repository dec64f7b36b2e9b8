// room/manager.go
package room

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/puzzle"
)

const (
	// JoinCodeAlphabet excludes 0/O and 1/I.
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	JoinCodeLength   = 6
	// DrawSize 每个房间抽取的大洲数量
	DrawSize = 3
)

// Manager 管理所有房间，按房间ID和加入码双索引
type Manager struct {
	rooms       map[string]*Room
	byCode      map[string]*Room
	mutex       sync.RWMutex
	opts        Options
	broadcaster Broadcaster
	validator   puzzle.Validator
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(opts Options, broadcaster Broadcaster, validator puzzle.Validator) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		byCode:      make(map[string]*Room),
		opts:        opts.withDefaults(),
		broadcaster: broadcaster,
		validator:   validator,
	}
}

// CreateRoom 创建房间：生成唯一加入码，抽取3个大洲，创建者为第一位玩家
func (m *Manager) CreateRoom(creatorPseudo string) (*Room, models.Player) {
	creator := models.NewPlayer(uuid.New().String(), creatorPseudo)
	draw := drawContinents()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	code := m.uniqueJoinCodeLocked()
	room := NewRoom(uuid.New().String(), code, draw, creator, m.opts, m.broadcaster, m.validator)
	m.rooms[room.ID] = room
	m.byCode[code] = room

	logger.Log.Infof("Room created: %s with code %s, drawn continents %v", room.ID, code, draw)
	return room, creator
}

// JoinRoom 通过加入码（忽略大小写）加入房间
func (m *Manager) JoinRoom(joinCode, pseudo string) (*Room, models.Player, error) {
	code := strings.ToUpper(strings.TrimSpace(joinCode))

	m.mutex.RLock()
	room, exists := m.byCode[code]
	m.mutex.RUnlock()
	if !exists {
		return nil, models.Player{}, ErrRoomNotFound
	}

	player := models.NewPlayer(uuid.New().String(), pseudo)
	if err := room.join(player); err != nil {
		return nil, models.Player{}, err
	}

	logger.Log.Infof("Player %s joined room %s", pseudo, room.ID)
	return room, player, nil
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemoveRoom 从两个索引中原子地移除房间
func (m *Manager) RemoveRoom(id string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	if !exists {
		return false
	}
	room.close()
	delete(m.rooms, id)
	if m.byCode[room.JoinCode] == room {
		delete(m.byCode, room.JoinCode)
	}
	return true
}

// RemoveIfIdle 在同一把锁内复查空闲并移除，检查与移除之间有活动的房间会被保留
func (m *Manager) RemoveIfIdle(id string, cutoff time.Time) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	if !exists || !room.closeIfIdle(cutoff) {
		return false
	}
	delete(m.rooms, id)
	if m.byCode[room.JoinCode] == room {
		delete(m.byCode, room.JoinCode)
	}
	return true
}

// Rooms returns the live rooms at the time of the call.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// --- 房间操作入口 ---

func (m *Manager) StartGame(roomID string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.StartGame()
}

func (m *Manager) SubmitPuzzle(roomID string, continent models.Continent, answer, playerID string) (puzzle.Result, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return puzzle.Result{}, err
	}
	return room.SubmitPuzzle(continent, answer, playerID)
}

func (m *Manager) RequestHint(roomID string, continent models.Continent) (int, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return 0, err
	}
	return room.RequestHint(continent)
}

func (m *Manager) SubmitMeta(roomID, answer string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.SubmitMeta(answer)
}

func (m *Manager) SubmitFinal(roomID, answer string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.SubmitFinal(answer)
}

func (m *Manager) SendChatMessage(roomID, playerID, message string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.SendChatMessage(playerID, message)
}

// RoomState 轮询接口：since 等于当前版本时 changed 为 false
func (m *Manager) RoomState(roomID string, since *int64) (snapshot models.RoomSnapshot, changed bool, err error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return models.RoomSnapshot{}, false, err
	}
	snapshot = room.Snapshot()
	if since != nil && *since == snapshot.Version {
		return snapshot, false, nil
	}
	return snapshot, true, nil
}

func (m *Manager) uniqueJoinCodeLocked() string {
	for {
		code := generateJoinCode()
		if _, taken := m.byCode[code]; !taken {
			return code
		}
	}
}

func generateJoinCode() string {
	var b strings.Builder
	b.Grow(JoinCodeLength)
	for i := 0; i < JoinCodeLength; i++ {
		b.WriteByte(JoinCodeAlphabet[rand.Intn(len(JoinCodeAlphabet))])
	}
	return b.String()
}

// drawContinents 从6个大洲中均匀随机抽取3个
func drawContinents() []models.Continent {
	perm := rand.Perm(len(models.AllContinents))
	draw := make([]models.Continent, DrawSize)
	for i := range draw {
		draw[i] = models.AllContinents[perm[i]]
	}
	return draw
}
