package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// USBCameraSource はUSBカメラの VideoSource 実装
type USBCameraSource struct {
	BaseVideoSource

	// V4L2キャプチャ用
	capturer *V4L2Capturer

	// 制御用
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    uint64
}

// NewDirectUSBCameraSource は新しいUSBCameraSourceを作成する
func NewDirectUSBCameraSource(info VideoSourceInfo, settings VideoSettings) *USBCameraSource {
	return &USBCameraSource{
		BaseVideoSource: newBaseVideoSource(info, settings),
		capturer:        NewV4L2Capturer(info.Device, settings.Width, settings.Height, settings.FrameRate),
	}
}

// Start はカメラを開始する
func (s *USBCameraSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil // 既に開始済み
	}

	// デバイステストを実行
	if err := s.capturer.TestCapture(ctx); err != nil {
		s.status = StatusError
		return fmt.Errorf("カメラのテストキャプチャに失敗: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.frameChan = make(chan Frame, 4)
	s.status = StatusActive

	s.wg.Add(1)
	go s.stream(streamCtx, s.frameChan)

	log.Printf("USBカメラを開始しました: %s", s.info.Device)
	return nil
}

// Stop はカメラを停止する
func (s *USBCameraSource) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.status == StatusInactive || s.cancel == nil {
		s.mu.Unlock()
		return nil // 既に停止済み
	}
	cancel := s.cancel
	s.cancel = nil
	s.status = StatusInactive
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return nil
}

// IsAvailable はカメラが利用可能かチェックする
func (s *USBCameraSource) IsAvailable(ctx context.Context) bool {
	return s.capturer.IsDeviceAvailable(ctx)
}

// stream はffmpegからのJPEGをFrameとして転送する。終了時にフレームチャンネルを閉じる
func (s *USBCameraSource) stream(ctx context.Context, frameChan chan Frame) {
	defer s.wg.Done()
	defer close(frameChan)

	settings := s.GetCurrentSettings()
	err := s.capturer.Stream(ctx, func(data []byte) {
		s.seq++
		s.deliver(frameChan, Frame{
			Seq:       s.seq,
			Width:     settings.Width,
			Height:    settings.Height,
			Format:    FormatJPEG,
			Data:      data,
			Timestamp: time.Now(),
		})
	})
	if err == nil {
		return
	}

	log.Printf("USBカメラのストリームが停止しました (%s): %v", s.info.Device, err)
	s.report(err)

	s.mu.Lock()
	if s.status == StatusActive {
		s.status = StatusError
	}
	s.mu.Unlock()
}
