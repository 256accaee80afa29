package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shutterbox/internal/camera"
	"shutterbox/internal/framebuffer"
	"shutterbox/internal/settings"
	"shutterbox/internal/storage"
)

// SettingsStore は撮影設定の読み書きを行う
type SettingsStore interface {
	Load() (settings.Settings, error)
	Save(settings.Settings) error
}

// ActiveSession は実行中セッションの情報
type ActiveSession struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	StartedAt time.Time `json:"started_at"`
}

// StatusInfo はセッション管理の状態
type StatusInfo struct {
	State       State                   `json:"state"`
	Connected   bool                    `json:"connected"`
	Source      *camera.VideoSourceInfo `json:"source,omitempty"`
	Active      *ActiveSession          `json:"active,omitempty"`
	FrameBuffer framebuffer.Stats       `json:"frame_buffer"`
	LastReport  *Report                 `json:"last_report,omitempty"`
}

type runningSession struct {
	ActiveSession
	cancel context.CancelCauseFunc
	done   chan struct{}
	report Report
}

// Manager は映像ソースからのフレームをバッファへ流し込み、撮影と録画を排他的に実行する
type Manager struct {
	buffer    *framebuffer.Buffer
	capture   *CaptureScheduler
	recording *RecordingLoop
	store     SettingsStore
	history   HistoryRecorder
	bus       *eventBus

	// connMu は接続と切断を直列化する
	connMu sync.Mutex

	mu         sync.Mutex
	state      State
	source     camera.VideoSource
	pumpDone   chan struct{}
	active     *runningSession
	lastReport *Report
}

// NewManager は新しいManagerを作成する
func NewManager(buffer *framebuffer.Buffer, store SettingsStore, writer storage.FrameWriter, config Config) *Manager {
	alloc := storage.NewAllocator()
	return &Manager{
		buffer:    buffer,
		capture:   NewCaptureScheduler(buffer, alloc, writer, config),
		recording: NewRecordingLoop(buffer, alloc, writer, config),
		store:     store,
		bus:       newEventBus(),
		state:     StateIdle,
	}
}

// SetHistoryRecorder はセッション結果の記録先を設定する
func (m *Manager) SetHistoryRecorder(history HistoryRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = history
}

// SetPreviewSource はフレームバッファが空のときに使う代替を設定する
func (m *Manager) SetPreviewSource(preview PreviewSource) {
	m.capture.SetPreviewSource(preview)
	m.recording.SetPreviewSource(preview)
}

// Subscribe はイベントの購読を開始する。戻り値の関数で購読を解除する
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.bus.subscribe(64)
}

// ConnectSource は映像ソースを開始し、フレームをバッファへ流し込む
func (m *Manager) ConnectSource(ctx context.Context, source camera.VideoSource) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.mu.Lock()
	connected := m.source != nil
	m.mu.Unlock()
	if connected {
		return fmt.Errorf("映像ソースは既に接続されています")
	}

	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("映像ソースの開始に失敗: %w", err)
	}

	m.buffer.Reset()
	done := make(chan struct{})

	m.mu.Lock()
	m.source = source
	m.pumpDone = done
	m.mu.Unlock()

	go m.pump(source, source.GetFrameChannel(), source.GetErrorChannel(), done)

	info := source.GetInfo()
	log.Printf("映像ソースを接続しました: %s (%s)", info.Name, info.Type)
	m.bus.publish(Event{Type: EventConnection, Connected: true, Source: info.Name})
	return nil
}

// DisconnectSource は映像ソースを停止する。実行中のセッションは ErrSourceLost で終了する
func (m *Manager) DisconnectSource(ctx context.Context) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.mu.Lock()
	source := m.source
	done := m.pumpDone
	m.source = nil
	m.pumpDone = nil
	if m.active != nil {
		m.active.cancel(ErrSourceLost)
	}
	m.mu.Unlock()

	if source == nil {
		return nil
	}

	err := source.Stop(ctx)
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	m.buffer.Reset()

	log.Printf("映像ソースを切断しました: %s", source.GetInfo().Name)
	m.bus.publish(Event{Type: EventConnection, Connected: false, Source: source.GetInfo().Name})
	if err != nil {
		return fmt.Errorf("映像ソースの停止に失敗: %w", err)
	}
	return nil
}

// pump はフレームをバッファへ書き込む。フレームチャンネルが閉じたら終了する
func (m *Manager) pump(source camera.VideoSource, frames <-chan camera.Frame, errs <-chan error, done chan struct{}) {
	defer close(done)

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				m.sourceLost(source)
				return
			}
			m.buffer.Publish(frame)
		case err := <-errs:
			log.Printf("映像ソースでエラーが発生: %v", err)
		}
	}
}

// sourceLost は予期しない切断を処理する。DisconnectSource 経由の停止では何もしない
func (m *Manager) sourceLost(source camera.VideoSource) {
	m.mu.Lock()
	if m.source != source {
		m.mu.Unlock()
		return
	}
	m.source = nil
	m.pumpDone = nil
	m.buffer.Reset()
	if m.active != nil {
		m.active.cancel(ErrSourceLost)
	}
	m.mu.Unlock()

	name := source.GetInfo().Name
	log.Printf("映像ソースとの接続が失われました: %s", name)
	m.bus.publish(Event{Type: EventConnection, Connected: false, Source: name, Error: ErrSourceLost.Error()})
}

// StartCapture は遅延付き撮影を開始し、セッションIDを返す
func (m *Manager) StartCapture(delaySeconds float64, shotCount int) (string, error) {
	if err := ValidateCapture(delaySeconds, shotCount); err != nil {
		return "", err
	}
	root, err := m.outputRoot()
	if err != nil {
		return "", err
	}

	run, ctx, err := m.begin(KindCapture, StateCapturing)
	if err != nil {
		return "", err
	}
	log.Printf("撮影を開始しました: id=%s delay=%.1fs shots=%d", run.ID, delaySeconds, shotCount)

	go func() {
		result, err := m.capture.RunCapture(ctx, root, delaySeconds, shotCount, m.progress(run.ID))
		report := Report{
			Directory: result.Directory,
			Requested: result.Requested,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
		}
		m.finish(run, report, result.Aborted, err)
	}()

	return run.ID, nil
}

// StartCaptureWithDefaults は保存済みの既定値で撮影を開始する
func (m *Manager) StartCaptureWithDefaults() (string, error) {
	s, err := m.store.Load()
	if err != nil {
		return "", fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return m.StartCapture(s.CaptureDelay, s.BurstCount)
}

// CancelCapture は実行中の撮影を中止する
func (m *Manager) CancelCapture() error {
	return m.cancelActive(StateCapturing)
}

// StartRecording は録画を開始し、セッションIDを返す
func (m *Manager) StartRecording(durationSeconds float64) (string, error) {
	if err := ValidateRecording(durationSeconds); err != nil {
		return "", err
	}
	root, err := m.outputRoot()
	if err != nil {
		return "", err
	}

	run, ctx, err := m.begin(KindRecording, StateRecording)
	if err != nil {
		return "", err
	}
	log.Printf("録画を開始しました: id=%s duration=%.1fs", run.ID, durationSeconds)

	go func() {
		result, err := m.recording.RunRecording(ctx, root, durationSeconds, m.progress(run.ID))
		report := Report{
			Directory: result.Directory,
			Requested: result.TotalFrames,
			Succeeded: result.Written,
			Failed:    result.Failed,
		}
		// 録画は停止操作で終えるのが通常の終わり方
		m.finish(run, report, false, err)
	}()

	return run.ID, nil
}

// StartRecordingWithDefaults は保存済みの既定値で録画を開始する
func (m *Manager) StartRecordingWithDefaults() (string, error) {
	s, err := m.store.Load()
	if err != nil {
		return "", fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return m.StartRecording(s.RecordDuration)
}

// StopRecording は実行中の録画を停止する
func (m *Manager) StopRecording() error {
	return m.cancelActive(StateRecording)
}

// SetOutputRoot は保存先ディレクトリを変更して設定に書き戻す
func (m *Manager) SetOutputRoot(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: 保存先が空です", ErrInvalidParameter)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	s, err := m.store.Load()
	if err != nil {
		return "", fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	s.OutputDirectory = abs
	if err := m.store.Save(s); err != nil {
		return "", fmt.Errorf("設定の保存に失敗: %w", err)
	}

	log.Printf("保存先を変更しました: %s", abs)
	return abs, nil
}

// Status は現在の状態を返す
func (m *Manager) Status() StatusInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := StatusInfo{
		State:       m.state,
		Connected:   m.source != nil,
		FrameBuffer: m.buffer.Stats(),
		LastReport:  m.lastReport,
	}
	if m.source != nil {
		info := m.source.GetInfo()
		status.Source = &info
	}
	if m.active != nil {
		active := m.active.ActiveSession
		status.Active = &active
	}
	return status
}

// Wait は実行中のセッションが終わるまで待ち、その結果を返す
//
// セッションが実行中でなければ直近の結果を返す。一度も実行していなければ false。
func (m *Manager) Wait(ctx context.Context) (Report, bool) {
	m.mu.Lock()
	run := m.active
	last := m.lastReport
	m.mu.Unlock()

	if run == nil {
		if last == nil {
			return Report{}, false
		}
		return *last, true
	}

	select {
	case <-run.done:
		return run.report, true
	case <-ctx.Done():
		return Report{}, false
	}
}

// Stop は実行中のセッションを中止し、映像ソースを切断する
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	run := m.active
	if run != nil {
		run.cancel(context.Canceled)
	}
	m.mu.Unlock()

	if run != nil {
		select {
		case <-run.done:
		case <-ctx.Done():
			log.Printf("セッションの終了待ちを中断しました: %v", ctx.Err())
		}
	}
	return m.DisconnectSource(ctx)
}

// begin は待機中であることを確認して状態を切り替える
func (m *Manager) begin(kind Kind, next State) (*runningSession, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionBusy, m.state)
	}
	if m.source == nil {
		return nil, nil, fmt.Errorf("%w: 映像ソースが接続されていません", ErrSourceLost)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	run := &runningSession{
		ActiveSession: ActiveSession{
			ID:        uuid.New().String(),
			Kind:      kind,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.state = next
	m.active = run
	return run, ctx, nil
}

func (m *Manager) cancelActive(expected State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != expected || m.active == nil {
		return ErrNoSession
	}
	m.active.cancel(context.Canceled)
	return nil
}

// finish は終了結果を確定させて待機中へ戻す
func (m *Manager) finish(run *runningSession, report Report, aborted bool, err error) {
	report.SessionID = run.ID
	report.Kind = run.Kind
	report.StartedAt = run.StartedAt
	report.FinishedAt = time.Now()

	switch {
	case err != nil:
		report.Outcome = OutcomeFailed
		report.Err = err
		report.Error = err.Error()
	case aborted:
		report.Outcome = OutcomeAborted
	default:
		report.Outcome = OutcomeCompleted
	}
	run.cancel(nil)
	run.report = report

	m.mu.Lock()
	history := m.history
	m.mu.Unlock()
	if history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := history.Record(ctx, report); err != nil {
			log.Printf("セッション履歴の保存に失敗: %v", err)
		}
		cancel()
	}

	m.mu.Lock()
	m.state = StateIdle
	m.active = nil
	m.lastReport = &report
	m.mu.Unlock()

	log.Printf("%sを終了しました: id=%s outcome=%s %d/%d dir=%s",
		kindLabel(report.Kind), report.SessionID, report.Outcome, report.Succeeded, report.Requested, report.Directory)
	if report.Err != nil && !errors.Is(report.Err, ErrSourceLost) {
		log.Printf("%sのエラー: %v", kindLabel(report.Kind), report.Err)
	}

	m.bus.publish(Event{Type: EventFinished, SessionID: report.SessionID, Report: &report})
	close(run.done)
}

func (m *Manager) progress(sessionID string) ProgressFunc {
	return func(event Event) {
		event.SessionID = sessionID
		m.bus.publish(event)
	}
}

func (m *Manager) outputRoot() (string, error) {
	s, err := m.store.Load()
	if err != nil {
		return "", fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return s.OutputDirectory, nil
}

func kindLabel(kind Kind) string {
	if kind == KindRecording {
		return "録画"
	}
	return "撮影"
}
