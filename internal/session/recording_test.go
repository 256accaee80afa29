package session

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shutterbox/internal/framebuffer"
	"shutterbox/internal/storage"
)

func newTestRecordingLoop(frames FrameSource, writer storage.FrameWriter) *RecordingLoop {
	return NewRecordingLoop(frames, storage.NewAllocator(), writer, DefaultConfig())
}

func TestRunRecording_InvalidDuration(t *testing.T) {
	loop := newTestRecordingLoop(bufferWithFrame(), storage.NewJPEGWriter(0))

	for _, d := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		if _, err := loop.RunRecording(context.Background(), t.TempDir(), d, nil); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("duration=%v: Expected ErrInvalidParameter, got %v", d, err)
		}
	}
}

func TestRunRecording_Completes(t *testing.T) {
	loop := newTestRecordingLoop(bufferWithFrame(), storage.NewJPEGWriter(0))
	events := &collectEvents{}

	start := time.Now()
	result, err := loop.RunRecording(context.Background(), t.TempDir(), 0.5, events.progress())
	took := time.Since(start)
	if err != nil {
		t.Fatalf("RunRecording failed: %v", err)
	}

	if result.TotalFrames != 5 {
		t.Errorf("Expected 5 planned frames, got %d", result.TotalFrames)
	}
	if result.Written < 1 || result.Written > 5 {
		t.Errorf("Expected 1..5 frames written, got %d", result.Written)
	}
	if result.Aborted {
		t.Error("Natural completion should not be marked aborted")
	}
	if took < 500*time.Millisecond {
		t.Errorf("Recording finished before its duration: %v", took)
	}
	if countFiles(t, result.Directory) != result.Written {
		t.Errorf("Expected %d files, got %d", result.Written, countFiles(t, result.Directory))
	}

	frames := events.ofType(EventFrame)
	if len(frames) == 0 {
		t.Fatal("Expected frame events")
	}
	last := frames[len(frames)-1]
	if last.RemainingSeconds != 0 || last.ElapsedSeconds < 0.5 {
		t.Errorf("Remaining time should reach 0 at or after the duration: %+v", last)
	}

	first := filepath.Base(frames[0].Path)
	if !strings.HasPrefix(first, "video_") || !strings.HasSuffix(first, "_frame_000000.jpg") {
		t.Errorf("Unexpected frame name: %s", first)
	}
}

func TestRunRecording_WriteFailuresAreSkipped(t *testing.T) {
	writer := &MockWriter{inner: storage.NewJPEGWriter(0), failOn: map[int]bool{1: true, 3: true}}
	loop := newTestRecordingLoop(bufferWithFrame(), writer)

	result, err := loop.RunRecording(context.Background(), t.TempDir(), 1, nil)
	if err != nil {
		t.Fatalf("Write failures should not fail the recording: %v", err)
	}
	if result.Failed != 2 {
		t.Errorf("Expected 2 failed frames, got %d", result.Failed)
	}
	if result.Written+result.Failed != writer.Calls() {
		t.Errorf("written=%d failed=%d calls=%d", result.Written, result.Failed, writer.Calls())
	}

	// 失敗したフレームは番号を消費しない
	if result.Written > 0 {
		matches, _ := filepath.Glob(filepath.Join(result.Directory, "*_frame_000000.jpg"))
		if len(matches) != 1 {
			t.Errorf("Expected first written frame to use index 0, got %v", matches)
		}
	}
}

func TestRunRecording_NoFrames(t *testing.T) {
	loop := newTestRecordingLoop(framebuffer.New(), storage.NewJPEGWriter(0))

	result, err := loop.RunRecording(context.Background(), t.TempDir(), 0.2, nil)
	if err != nil {
		t.Fatalf("Recording without frames should complete quietly: %v", err)
	}
	if result.Written != 0 {
		t.Errorf("Expected no frames, got %d", result.Written)
	}
}

func TestRunRecording_Stop(t *testing.T) {
	loop := newTestRecordingLoop(bufferWithFrame(), storage.NewJPEGWriter(0))

	ctx, cancel := context.WithCancelCause(context.Background())
	time.AfterFunc(250*time.Millisecond, func() { cancel(context.Canceled) })

	start := time.Now()
	result, err := loop.RunRecording(ctx, t.TempDir(), 10, nil)
	if err != nil {
		t.Fatalf("Stop should not be an error: %v", err)
	}
	if !result.Aborted {
		t.Error("Expected Aborted to be set")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Stop was not honoured promptly")
	}
	if result.Written == 0 || result.Written >= result.TotalFrames {
		t.Errorf("Unexpected frame count after stop: %d/%d", result.Written, result.TotalFrames)
	}
	if countFiles(t, result.Directory) != result.Written {
		t.Error("Frames written before stop should remain")
	}
}

func TestRunRecording_SourceLost(t *testing.T) {
	loop := newTestRecordingLoop(bufferWithFrame(), storage.NewJPEGWriter(0))

	ctx, cancel := context.WithCancelCause(context.Background())
	time.AfterFunc(150*time.Millisecond, func() { cancel(ErrSourceLost) })

	result, err := loop.RunRecording(ctx, t.TempDir(), 10, nil)
	if !errors.Is(err, ErrSourceLost) {
		t.Errorf("Expected ErrSourceLost, got %v", err)
	}
	if countFiles(t, result.Directory) != result.Written {
		t.Error("Frames written before the loss should remain")
	}
}
