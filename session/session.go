// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/network"
)

var ErrSessionClosed = errors.New("session closed")

// DefaultOutboxSize 每个会话待发送消息的缓冲上限，满了就丢弃
const DefaultOutboxSize = 64

type outbound struct {
	msgID uint16
	data  []byte
}

// Session 一个玩家的一条 WebSocket 连接
type Session struct {
	ID         string
	Conn       network.Connection
	PlayerID   string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time

	outbox    chan outbound
	done      chan struct{}
	closeOnce sync.Once
	mutex     sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	return NewSessionWithOutbox(id, conn, DefaultOutboxSize)
}

func NewSessionWithOutbox(id string, conn network.Connection, size int) *Session {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		outbox:     make(chan outbound, size),
		done:       make(chan struct{}),
	}
}

// Enqueue 非阻塞投递，缓冲区满或会话已关闭时返回 false
func (s *Session) Enqueue(msgID uint16, data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- outbound{msgID: msgID, data: data}:
		return true
	default:
		return false
	}
}

// Send 同步写入连接，只应在 WritePump 之外的握手阶段使用
func (s *Session) Send(msgID uint16, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.Touch()
	return s.Conn.Send(msgID, data)
}

// WritePump 把 outbox 中的消息顺序写到连接，直到会话关闭或写失败
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outbox:
			if err := s.Conn.Send(msg.msgID, msg.data); err != nil {
				logger.Log.Debugf("Session %s write failed: %v", s.ID, err)
				s.Close()
				return
			}
			s.Touch()
		}
	}
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByPlayerID(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) GetByRoomID(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID == roomID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
