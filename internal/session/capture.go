package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"shutterbox/internal/storage"
)

// CaptureResult は撮影セッションの結果
type CaptureResult struct {
	Directory string
	Requested int
	Succeeded int
	Failed    int
	Files     []string
	Aborted   bool // 利用者による中止
}

// CaptureScheduler は遅延付きの単写と連写を実行する
type CaptureScheduler struct {
	frames frameReader
	alloc  DirectoryAllocator
	writer storage.FrameWriter
	config Config
}

// NewCaptureScheduler は新しいCaptureSchedulerを作成する
func NewCaptureScheduler(frames FrameSource, alloc DirectoryAllocator, writer storage.FrameWriter, config Config) *CaptureScheduler {
	return &CaptureScheduler{
		frames: frameReader{frames: frames},
		alloc:  alloc,
		writer: writer,
		config: config.withDefaults(),
	}
}

// SetPreviewSource はフレームバッファが空のときに使う代替を設定する
func (s *CaptureScheduler) SetPreviewSource(preview PreviewSource) {
	s.frames.preview = preview
}

// RunCapture は delaySeconds 秒待ってから shotCount 枚撮影する
//
// 2枚以上の場合は BurstWindow の中に等間隔で撮影する。各ショットの目標時刻は
// 連写開始時刻を基準にするので、書き込みの遅れは次のショットに持ち越されない。
// 利用者による中止では Aborted を立てて nil を返す。書き込み済みのファイルは残る。
func (s *CaptureScheduler) RunCapture(ctx context.Context, root string, delaySeconds float64, shotCount int, progress ProgressFunc) (CaptureResult, error) {
	result := CaptureResult{Requested: shotCount}

	if err := ValidateCapture(delaySeconds, shotCount); err != nil {
		return result, err
	}

	if delaySeconds > 0 && !s.countdown(ctx, durationFromSeconds(delaySeconds), progress) {
		result.Aborted = true
		return result, stopReason(ctx)
	}
	if ctx.Err() != nil {
		result.Aborted = true
		return result, stopReason(ctx)
	}

	if shotCount == 1 {
		return s.single(root, result, progress)
	}
	return s.burst(ctx, root, result, progress)
}

// ValidateCapture は撮影パラメータを検証する
func ValidateCapture(delaySeconds float64, shotCount int) error {
	if math.IsNaN(delaySeconds) || math.IsInf(delaySeconds, 0) || delaySeconds < 0 {
		return fmt.Errorf("%w: 遅延は0秒以上で指定してください (%v)", ErrInvalidParameter, delaySeconds)
	}
	if shotCount < 1 {
		return fmt.Errorf("%w: 撮影枚数は1以上で指定してください (%d)", ErrInvalidParameter, shotCount)
	}
	return nil
}

// countdown は残り時間を通知しながら待つ。中止された場合は false
func (s *CaptureScheduler) countdown(ctx context.Context, delay time.Duration, progress ProgressFunc) bool {
	remaining := delay
	for remaining > 0 {
		progress.emit(Event{Type: EventCountdown, RemainingSeconds: remaining.Seconds()})

		step := min(s.config.CountdownStep, remaining)
		if !sleep(ctx, step) {
			return false
		}
		remaining -= step
	}
	progress.emit(Event{Type: EventCountdown, RemainingSeconds: 0})
	return true
}

func (s *CaptureScheduler) single(root string, result CaptureResult, progress ProgressFunc) (CaptureResult, error) {
	frame, ok := s.frames.take()
	if !ok {
		return result, ErrNoFrame
	}

	now := time.Now()
	dir, err := s.alloc.AllocateSessionDirectory(root, now)
	if err != nil {
		return result, err
	}
	result.Directory = dir

	path := filepath.Join(dir, storage.PhotoName(now))
	if err := s.writer.WriteFrame(path, frame); err != nil {
		result.Failed = 1
		progress.emit(Event{Type: EventShot, Index: 1, Total: 1, Error: err.Error()})
		return result, writeError(err)
	}

	result.Succeeded = 1
	result.Files = append(result.Files, path)
	progress.emit(Event{Type: EventShot, Index: 1, Total: 1, Path: path})
	return result, nil
}

func (s *CaptureScheduler) burst(ctx context.Context, root string, result CaptureResult, progress ProgressFunc) (CaptureResult, error) {
	n := result.Requested

	// 1枚も取れない状態ではディレクトリを作らない
	first, ok := s.frames.take()
	if !ok {
		return result, ErrNoFrame
	}

	startedAt := time.Now()
	dir, err := s.alloc.AllocateSessionDirectory(root, startedAt)
	if err != nil {
		return result, err
	}
	result.Directory = dir

	interval := s.config.BurstWindow / time.Duration(n)
	start := time.Now()

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			result.Aborted = true
			return result, stopReason(ctx)
		}

		frame := first
		if i > 0 {
			frame, ok = s.frames.take()
		}

		elapsed := time.Since(start)
		path := filepath.Join(dir, storage.BurstShotName(startedAt, elapsed, i+1, n))
		event := Event{
			Type:             EventShot,
			Index:            i + 1,
			Total:            n,
			ElapsedSeconds:   elapsed.Seconds(),
			RemainingSeconds: max(0, s.config.BurstWindow-elapsed).Seconds(),
		}

		var writeErr error
		if ok {
			writeErr = s.writer.WriteFrame(path, frame)
		} else {
			writeErr = ErrNoFrame
		}
		if writeErr != nil {
			result.Failed++
			event.Error = writeErr.Error()
			log.Printf("連写 %d/%d の保存に失敗: %v", i+1, n, writeErr)
		} else {
			result.Succeeded++
			result.Files = append(result.Files, path)
			event.Path = path
		}
		progress.emit(event)

		if i == n-1 {
			break
		}
		wait := time.Duration(i+1)*interval - time.Since(start)
		if !sleep(ctx, wait) {
			result.Aborted = true
			return result, stopReason(ctx)
		}
	}

	if result.Succeeded == 0 {
		return result, fmt.Errorf("%w: 連写の全ショットが失敗しました", ErrIOWrite)
	}
	return result, nil
}
