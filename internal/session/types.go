package session

import (
	"context"
	"time"

	"shutterbox/internal/camera"
)

// Config はセッションのタイミング設定
type Config struct {
	CountdownStep time.Duration // カウントダウンの刻み
	BurstWindow   time.Duration // 連写を収める時間幅
	RecordingFPS  int           // 録画のフレームレート
}

// DefaultConfig はデフォルトのタイミング設定を返す
func DefaultConfig() Config {
	return Config{
		CountdownStep: 100 * time.Millisecond,
		BurstWindow:   time.Second,
		RecordingFPS:  10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CountdownStep <= 0 {
		c.CountdownStep = d.CountdownStep
	}
	if c.BurstWindow <= 0 {
		c.BurstWindow = d.BurstWindow
	}
	if c.RecordingFPS <= 0 {
		c.RecordingFPS = d.RecordingFPS
	}
	return c
}

// State はセッション管理の状態
type State string

const (
	StateIdle      State = "idle"      // 待機中
	StateCapturing State = "capturing" // 撮影中（カウントダウンを含む）
	StateRecording State = "recording" // 録画中
)

// Kind はセッションの種類
type Kind string

const (
	KindCapture   Kind = "capture"
	KindRecording Kind = "recording"
)

// Outcome はセッションの終わり方
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // 最後まで実行した
	OutcomeAborted   Outcome = "aborted"   // 利用者が中止した
	OutcomeFailed    Outcome = "failed"    // エラーで終了した
)

// Report はセッション終了時の結果
type Report struct {
	SessionID  string    `json:"session_id"`
	Kind       Kind      `json:"kind"`
	Outcome    Outcome   `json:"outcome"`
	Directory  string    `json:"directory,omitempty"`
	Requested  int       `json:"requested"` // 撮影は要求枚数、録画は予定フレーム数
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
	Err        error     `json:"-"`
}

// FrameSource は最新フレームのコピーを返す
type FrameSource interface {
	Snapshot() (camera.Frame, bool)
}

// PreviewSource は画面に表示中のフレームを返す
//
// フレームバッファが空のときの代替として使う。
type PreviewSource interface {
	PreviewFrame() (camera.Frame, bool)
}

// DirectoryAllocator はセッションごとの保存先ディレクトリを作成する
type DirectoryAllocator interface {
	AllocateSessionDirectory(root string, now time.Time) (string, error)
}

// HistoryRecorder はセッションの結果を記録する
type HistoryRecorder interface {
	Record(ctx context.Context, report Report) error
}

// frameReader はフレームバッファから読み、空なら表示中のフレームで代替する
type frameReader struct {
	frames  FrameSource
	preview PreviewSource
}

func (r frameReader) take() (camera.Frame, bool) {
	if frame, ok := r.frames.Snapshot(); ok && !frame.IsEmpty() {
		return frame, true
	}
	if r.preview == nil {
		return camera.Frame{}, false
	}
	frame, ok := r.preview.PreviewFrame()
	if !ok || frame.IsEmpty() {
		return camera.Frame{}, false
	}
	return frame.Clone(), true
}

// sleep は d だけ待つ。途中でキャンセルされたら false を返す
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func durationFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
