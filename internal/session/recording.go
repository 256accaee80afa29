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

// RecordingResult は録画セッションの結果
type RecordingResult struct {
	Directory   string
	TotalFrames int // 予定フレーム数
	Written     int
	Failed      int
	Aborted     bool
}

// RecordingLoop は指定時間だけ一定間隔でフレームを連番保存する
type RecordingLoop struct {
	frames frameReader
	alloc  DirectoryAllocator
	writer storage.FrameWriter
	config Config
}

// NewRecordingLoop は新しいRecordingLoopを作成する
func NewRecordingLoop(frames FrameSource, alloc DirectoryAllocator, writer storage.FrameWriter, config Config) *RecordingLoop {
	return &RecordingLoop{
		frames: frameReader{frames: frames},
		alloc:  alloc,
		writer: writer,
		config: config.withDefaults(),
	}
}

// SetPreviewSource はフレームバッファが空のときに使う代替を設定する
func (r *RecordingLoop) SetPreviewSource(preview PreviewSource) {
	r.frames.preview = preview
}

// ValidateRecording は録画時間を検証する
func ValidateRecording(durationSeconds float64) error {
	if math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds <= 0 {
		return fmt.Errorf("%w: 録画時間は0秒より長く指定してください (%v)", ErrInvalidParameter, durationSeconds)
	}
	return nil
}

// RunRecording は durationSeconds 秒の間フレームを保存する
//
// フレーム間の待ち時間は書き込みにかかった時間に関係なく一定。残り時間は毎回
// 実経過時間から計算し直すので、書き込みが遅くても停止時刻は実時間に従う。
// 1枚の書き込み失敗はスキップして続行する。
func (r *RecordingLoop) RunRecording(ctx context.Context, root string, durationSeconds float64, progress ProgressFunc) (RecordingResult, error) {
	var result RecordingResult
	if err := ValidateRecording(durationSeconds); err != nil {
		return result, err
	}

	duration := durationFromSeconds(durationSeconds)
	interval := time.Second / time.Duration(r.config.RecordingFPS)
	// 2.3*10 が 22.999... になるような丸め誤差を吸収する
	result.TotalFrames = int(math.Floor(durationSeconds*float64(r.config.RecordingFPS) + 1e-9))

	now := time.Now()
	dir, err := r.alloc.AllocateSessionDirectory(root, now)
	if err != nil {
		return result, err
	}
	result.Directory = dir
	base := storage.RecordingBaseName(now)

	start := time.Now()
	remaining := func() time.Duration {
		return max(0, duration-time.Since(start))
	}

	for i := 0; i < result.TotalFrames; i++ {
		if ctx.Err() != nil {
			result.Aborted = true
			return result, stopReason(ctx)
		}
		if remaining() == 0 {
			break
		}

		event := Event{Type: EventFrame, Total: result.TotalFrames}
		if frame, ok := r.frames.take(); ok {
			path := filepath.Join(dir, storage.RecordingFrameName(base, result.Written))
			if err := r.writer.WriteFrame(path, frame); err != nil {
				result.Failed++
				event.Error = err.Error()
				log.Printf("録画フレームの保存に失敗: %v", err)
			} else {
				result.Written++
				event.Path = path
			}
		}

		elapsed := time.Since(start)
		event.Index = result.Written
		event.ElapsedSeconds = elapsed.Seconds()
		event.RemainingSeconds = remaining().Seconds()
		progress.emit(event)

		if !sleep(ctx, interval) {
			result.Aborted = true
			return result, stopReason(ctx)
		}
	}

	// 予定フレームを書き終えても録画時間が残っていれば時間いっぱいまで待つ
	if !sleep(ctx, remaining()) {
		result.Aborted = true
		return result, stopReason(ctx)
	}
	progress.emit(Event{
		Type:             EventFrame,
		Index:            result.Written,
		Total:            result.TotalFrames,
		ElapsedSeconds:   time.Since(start).Seconds(),
		RemainingSeconds: 0,
	})

	return result, nil
}
