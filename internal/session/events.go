package session

import (
	"sync"
	"time"
)

// EventType はイベントの種類
type EventType string

const (
	EventConnection EventType = "connection" // 映像ソースの接続状態が変わった
	EventCountdown  EventType = "countdown"  // 撮影までの残り時間
	EventShot       EventType = "shot"       // 1枚撮影した
	EventFrame      EventType = "frame"      // 録画フレームを1枚処理した
	EventFinished   EventType = "finished"   // セッションが終了した
)

// Event は進捗通知
type Event struct {
	Type             EventType `json:"type"`
	SessionID        string    `json:"session_id,omitempty"`
	Time             time.Time `json:"time"`
	Connected        bool      `json:"connected,omitempty"`
	Source           string    `json:"source,omitempty"`
	Index            int       `json:"index,omitempty"`
	Total            int       `json:"total,omitempty"`
	ElapsedSeconds   float64   `json:"elapsed_seconds,omitempty"`
	RemainingSeconds float64   `json:"remaining_seconds"`
	Path             string    `json:"path,omitempty"`
	Error            string    `json:"error,omitempty"`
	Report           *Report   `json:"report,omitempty"`
}

// ProgressFunc は進捗イベントを受け取る
type ProgressFunc func(Event)

func (p ProgressFunc) emit(event Event) {
	if p == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	p(event)
}

// eventBus は購読者ごとのチャンネルにイベントを配る
//
// 購読者のチャンネルが詰まっている場合、そのイベントは捨てる。
type eventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

func (b *eventBus) subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Event, size)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *eventBus) publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
