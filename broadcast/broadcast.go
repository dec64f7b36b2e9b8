// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/wfunc/atlas/logger"
	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/monitor"
	"github.com/wfunc/atlas/network"
	"github.com/wfunc/atlas/session"
)

// Hub 按房间维护订阅的会话，实现 room.Broadcaster。
// 房间锁内调用，所以投递只做非阻塞入队，慢客户端直接丢消息。
type Hub struct {
	subscribers map[string]map[string]*session.Session
	monitor     *monitor.Monitor
	mutex       sync.RWMutex
}

func NewHub(mon *monitor.Monitor) *Hub {
	return &Hub{
		subscribers: make(map[string]map[string]*session.Session),
		monitor:     mon,
	}
}

func (h *Hub) Subscribe(roomID string, s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	subs, ok := h.subscribers[roomID]
	if !ok {
		subs = make(map[string]*session.Session)
		h.subscribers[roomID] = subs
	}
	subs[s.ID] = s
}

func (h *Hub) Unsubscribe(roomID, sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	subs, ok := h.subscribers[roomID]
	if !ok {
		return
	}
	delete(subs, sessionID)
	if len(subs) == 0 {
		delete(h.subscribers, roomID)
	}
}

func (h *Hub) SubscriberCount(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers[roomID])
}

func (h *Hub) BroadcastToRoom(roomID string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, s := range h.subscribers[roomID] {
		if !s.Enqueue(network.MsgTypeRoomEvent, data) {
			logger.Log.Debugf("Room %s: dropped %s for session %s", roomID, event.Type, s.ID)
			h.monitor.IncEventDropped()
			continue
		}
		h.monitor.IncEventBroadcast(string(event.Type))
	}
	return nil
}

// CloseRoom 房间被回收时断开所有订阅者
func (h *Hub) CloseRoom(roomID string) {
	h.mutex.Lock()
	subs := h.subscribers[roomID]
	delete(h.subscribers, roomID)
	h.mutex.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
