package room

import (
	"sync"
	"time"

	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/puzzle"
)

// MockBroadcaster records every event published per room.
type MockBroadcaster struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{events: make(map[string][]models.Event)}
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, event models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[roomID] = append(m.events[roomID], event)
	return nil
}

func (m *MockBroadcaster) Events(roomID string) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Event(nil), m.events[roomID]...)
}

func (m *MockBroadcaster) Types(roomID string) []models.EventType {
	var types []models.EventType
	for _, ev := range m.Events(roomID) {
		types = append(types, ev.Type)
	}
	return types
}

func (m *MockBroadcaster) Reset(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, roomID)
}

const rightAnswer = "RIGHT"
const metaAnswer = "META-KEY"

// MockValidator accepts rightAnswer for every continent and metaAnswer for the meta puzzle.
type MockValidator struct{}

func (MockValidator) Validate(c models.Continent, answer string) puzzle.Result {
	if answer == rightAnswer {
		return puzzle.Result{Success: true, Fragment: "frag-" + c.Key()}
	}
	return puzzle.Result{ErrorCode: "E_WRONG", Message: "wrong"}
}

func (MockValidator) ValidateMeta(answer string, fragments map[string]string) bool {
	return answer == metaAnswer
}

func (MockValidator) ValidateFinal(answer string, draw []models.Continent) bool {
	return answer == puzzle.FinalCode(draw)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
