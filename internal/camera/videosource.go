package camera

import (
	"context"
	"sync"
)

// VideoSourceType はソースタイプを定義
type VideoSourceType string

const (
	// SourceTypeUSBCamera はUSBカメラソースを表す
	SourceTypeUSBCamera VideoSourceType = "usb_camera"
	// SourceTypeTestPattern は合成テストパターンソースを表す
	SourceTypeTestPattern VideoSourceType = "test_pattern"
)

// VideoSource は映像ソースを統一するインターフェース
//
// フレームは GetFrameChannel から1枚ずつ届く。ソースが停止または切断されると
// フレームチャンネルはクローズされる。
type VideoSource interface {
	// 基本操作
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsAvailable(ctx context.Context) bool

	// ストリーミング
	GetFrameChannel() <-chan Frame
	GetErrorChannel() <-chan error

	// メタデータ
	GetInfo() VideoSourceInfo
	GetCurrentSettings() VideoSettings

	// ステータス取得
	GetStatus() Status
}

// VideoSourceInfo はソース情報を表す
type VideoSourceInfo struct {
	ID          string
	Name        string
	Type        VideoSourceType
	Driver      string
	Description string
	Device      string // デバイスパス（USBカメラ等）
}

// VideoSettings は動画設定を統一
type VideoSettings struct {
	Width     int
	Height    int
	FrameRate int
	Format    PixelFormat
	Quality   int
}

// BaseVideoSource は共通実装を提供
type BaseVideoSource struct {
	info      VideoSourceInfo
	settings  VideoSettings
	frameChan chan Frame
	errorChan chan error
	status    Status
	mu        sync.RWMutex
}

func newBaseVideoSource(info VideoSourceInfo, settings VideoSettings) BaseVideoSource {
	return BaseVideoSource{
		info:      info,
		settings:  settings,
		frameChan: make(chan Frame, 4),
		errorChan: make(chan error, 5),
		status:    StatusInactive,
	}
}

// GetInfo は基本情報を返す
func (b *BaseVideoSource) GetInfo() VideoSourceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// GetCurrentSettings は現在の設定を返す
func (b *BaseVideoSource) GetCurrentSettings() VideoSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// GetStatus はステータスを返す
func (b *BaseVideoSource) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// GetFrameChannel はフレームチャンネルを返す
func (b *BaseVideoSource) GetFrameChannel() <-chan Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frameChan
}

// GetErrorChannel はエラーチャンネルを返す
func (b *BaseVideoSource) GetErrorChannel() <-chan error {
	return b.errorChan
}

// deliver はフレームを送信する。受信側が詰まっている場合は古いフレームを捨てる
func (b *BaseVideoSource) deliver(frameChan chan Frame, frame Frame) {
	select {
	case frameChan <- frame:
		return
	default:
	}

	select {
	case <-frameChan:
	default:
	}

	select {
	case frameChan <- frame:
	default:
	}
}

// report はエラーを送信する。エラーチャンネルがフルの場合は古いエラーを捨てる
func (b *BaseVideoSource) report(err error) {
	select {
	case b.errorChan <- err:
		return
	default:
	}

	select {
	case <-b.errorChan:
	default:
	}

	select {
	case b.errorChan <- err:
	default:
	}
}
