// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultResolution 最小调度精度
const DefaultResolution = 100 * time.Millisecond

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
	running  atomic.Bool
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

type TimerManager struct {
	queue      TimerQueue
	mutex      sync.Mutex
	nextId     int64
	resolution time.Duration
	closeChan  chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewTimerManager() *TimerManager {
	return NewTimerManagerWithResolution(DefaultResolution)
}

func NewTimerManagerWithResolution(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	manager := &TimerManager{
		queue:      make(TimerQueue, 0),
		nextId:     1,
		resolution: resolution,
		closeChan:  make(chan struct{}),
	}
	heap.Init(&manager.queue)
	manager.wg.Add(1)
	go manager.process()
	return manager
}

// AddTimer delay 后执行 callback，interval > 0 时周期执行。
// 同一个周期任务上一次还没执行完时，本次触发会被跳过。
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop 停止调度并等待正在执行的回调结束
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.closeChan)
	})
	m.wg.Wait()
}

func (m *TimerManager) process() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeChan:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				if !task.running.CompareAndSwap(false, true) {
					continue
				}
				m.wg.Add(1)
				go func(t *TimerTask) {
					defer m.wg.Done()
					defer t.running.Store(false)
					t.Callback()
				}(task)
			}
		}
	}
}

// due 取出所有到期任务，周期任务按原节拍重新入队
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var tasks []*TimerTask
	var again []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		tasks = append(tasks, task)

		if task.Interval > 0 {
			task.Execute = task.Execute.Add(task.Interval)
			if !task.Execute.After(now) {
				task.Execute = now.Add(task.Interval)
			}
			again = append(again, task)
		}
	}
	for _, task := range again {
		heap.Push(&m.queue, task)
	}
	return tasks
}
