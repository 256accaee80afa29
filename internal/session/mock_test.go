package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"shutterbox/internal/camera"
	"shutterbox/internal/framebuffer"
	"shutterbox/internal/settings"
	"shutterbox/internal/storage"
)

// MockVideoSource はテスト用の映像ソース
type MockVideoSource struct {
	frames chan camera.Frame
	errs   chan error
	once   sync.Once
	mu     sync.Mutex
	status camera.Status
}

func NewMockVideoSource() *MockVideoSource {
	return &MockVideoSource{
		frames: make(chan camera.Frame, 16),
		errs:   make(chan error, 1),
		status: camera.StatusInactive,
	}
}

func (m *MockVideoSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = camera.StatusActive
	return nil
}

func (m *MockVideoSource) Stop(_ context.Context) error {
	m.mu.Lock()
	m.status = camera.StatusInactive
	m.mu.Unlock()
	m.once.Do(func() { close(m.frames) })
	return nil
}

// Kill はケーブルが抜けたときのようにフレームチャンネルを閉じる
func (m *MockVideoSource) Kill() {
	m.mu.Lock()
	m.status = camera.StatusError
	m.mu.Unlock()
	m.once.Do(func() { close(m.frames) })
}

func (m *MockVideoSource) Send(frame camera.Frame) {
	m.frames <- frame
}

func (m *MockVideoSource) IsAvailable(_ context.Context) bool  { return true }
func (m *MockVideoSource) GetFrameChannel() <-chan camera.Frame { return m.frames }
func (m *MockVideoSource) GetErrorChannel() <-chan error        { return m.errs }
func (m *MockVideoSource) GetCurrentSettings() camera.VideoSettings {
	return camera.VideoSettings{Width: 2, Height: 2, Format: camera.FormatRGB24}
}

func (m *MockVideoSource) GetInfo() camera.VideoSourceInfo {
	return camera.VideoSourceInfo{ID: "mock", Name: "Mock Camera", Type: camera.SourceTypeTestPattern}
}

func (m *MockVideoSource) GetStatus() camera.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// MockWriter は指定した回数目の書き込みを失敗させる
type MockWriter struct {
	inner   storage.FrameWriter
	failOn  map[int]bool // 1始まり
	failAll bool

	mu    sync.Mutex
	calls int
}

func (w *MockWriter) WriteFrame(path string, frame camera.Frame) error {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.mu.Unlock()

	if w.failAll || w.failOn[call] {
		return errors.New("disk full")
	}
	return w.inner.WriteFrame(path, frame)
}

func (w *MockWriter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// MockPreview は表示中のフレームを返す
type MockPreview struct {
	frame camera.Frame
}

func (p *MockPreview) PreviewFrame() (camera.Frame, bool) {
	return p.frame, !p.frame.IsEmpty()
}

// MockSettingsStore はメモリ上の設定ストア
type MockSettingsStore struct {
	mu       sync.Mutex
	settings settings.Settings
	saves    int
}

func (s *MockSettingsStore) Load() (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *MockSettingsStore) Save(v settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	s.saves++
	return nil
}

// MockHistory は記録されたセッション結果を保持する
type MockHistory struct {
	mu      sync.Mutex
	reports []Report
}

func (h *MockHistory) Record(_ context.Context, report Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, report)
	return nil
}

func (h *MockHistory) Reports() []Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Report(nil), h.reports...)
}

func testFrame(seq uint64) camera.Frame {
	return camera.Frame{
		Seq:       seq,
		Width:     2,
		Height:    2,
		Format:    camera.FormatRGB24,
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Timestamp: time.Now(),
	}
}

func bufferWithFrame() *framebuffer.Buffer {
	buf := framebuffer.New()
	buf.Publish(testFrame(1))
	return buf
}

// collectEvents は ProgressFunc に届いたイベントを保持する
type collectEvents struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectEvents) progress() ProgressFunc {
	return func(e Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
	}
}

func (c *collectEvents) ofType(eventType EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	return len(entries)
}
