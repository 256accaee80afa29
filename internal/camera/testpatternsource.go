package camera

import (
	"context"
	"log"
	"sync"
	"time"
)

// TestPatternSource は合成画像を一定間隔で生成する VideoSource 実装
//
// 実機がない環境での動作確認やテストに使う。
type TestPatternSource struct {
	BaseVideoSource

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTestPatternSource は新しいTestPatternSourceを作成する
func NewTestPatternSource(info VideoSourceInfo, settings VideoSettings) *TestPatternSource {
	settings.Format = FormatRGBA
	return &TestPatternSource{
		BaseVideoSource: newBaseVideoSource(info, settings),
	}
}

// Start はパターン生成を開始する
func (s *TestPatternSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil
	}

	genCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.frameChan = make(chan Frame, 4)
	s.status = StatusActive

	s.wg.Add(1)
	go s.generate(genCtx, s.frameChan, s.settings)

	log.Printf("テストパターンソースを開始しました (%dx%d, %dfps)", s.settings.Width, s.settings.Height, s.settings.FrameRate)
	return nil
}

// Stop はパターン生成を停止する
func (s *TestPatternSource) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.status = StatusInactive
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return nil
}

// IsAvailable は常に true を返す
func (s *TestPatternSource) IsAvailable(_ context.Context) bool {
	return true
}

func (s *TestPatternSource) generate(ctx context.Context, frameChan chan Frame, settings VideoSettings) {
	defer s.wg.Done()
	defer close(frameChan)

	fps := settings.FrameRate
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			s.deliver(frameChan, Frame{
				Seq:       seq,
				Width:     settings.Width,
				Height:    settings.Height,
				Format:    FormatRGBA,
				Data:      renderPattern(settings.Width, settings.Height, seq),
				Timestamp: now,
			})
		}
	}
}

// renderPattern はグラデーション背景の上を縦バーが流れる画像を生成する
func renderPattern(width, height int, seq uint64) []byte {
	pix := make([]byte, width*height*4)
	if width <= 0 || height <= 0 {
		return pix
	}

	barWidth := width / 16
	if barWidth < 1 {
		barWidth = 1
	}
	barX := int(seq*uint64(barWidth)) % width

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			if x >= barX && x < barX+barWidth {
				pix[i+0], pix[i+1], pix[i+2] = 255, 255, 255
			} else {
				pix[i+0] = byte(x * 255 / width)
				pix[i+1] = byte(y * 255 / height)
				pix[i+2] = byte(seq)
			}
			pix[i+3] = 255
		}
	}
	return pix
}
