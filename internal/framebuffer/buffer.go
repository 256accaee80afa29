// Package framebuffer は映像ソースから届いた最新フレームを保持する
package framebuffer

import (
	"sync"
	"time"

	"shutterbox/internal/camera"
)

// Stats はフレームバッファの統計情報
type Stats struct {
	Published   uint64    `json:"published"`    // 受け取ったフレーム数
	Snapshots   uint64    `json:"snapshots"`    // 取り出した回数
	HasFrame    bool      `json:"has_frame"`    // 保持中のフレームがあるか
	LastArrival time.Time `json:"last_arrival"` // 最後にフレームが届いた時刻
	Width       int       `json:"width"`
	Height      int       `json:"height"`
}

// Buffer は最新フレーム1枚を排他的に保持する
//
// Publish は受け取ったフレームの所有権を引き取る。呼び出し側は渡した後に
// Data を書き換えてはならない。Snapshot は毎回独立したコピーを返す。
type Buffer struct {
	mu        sync.Mutex
	current   camera.Frame
	has       bool
	published uint64
	snapshots uint64
}

// New は空のBufferを作成する
func New() *Buffer {
	return &Buffer{}
}

// Publish は保持中のフレームを置き換える
func (b *Buffer) Publish(frame camera.Frame) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.current = frame
	b.has = true
	b.published++
	b.mu.Unlock()
}

// Snapshot は保持中フレームのコピーを返す。まだ一度も Publish されていなければ false
func (b *Buffer) Snapshot() (camera.Frame, bool) {
	b.mu.Lock()
	if !b.has {
		b.mu.Unlock()
		return camera.Frame{}, false
	}
	frame := b.current
	b.snapshots++
	b.mu.Unlock()

	// 保持中のフレームは変更されないので、コピーはロックの外で行う
	return frame.Clone(), true
}

// Reset は保持中のフレームを破棄する
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.current = camera.Frame{}
	b.has = false
	b.mu.Unlock()
}

// Stats は統計情報を返す
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Published:   b.published,
		Snapshots:   b.snapshots,
		HasFrame:    b.has,
		LastArrival: b.current.Timestamp,
		Width:       b.current.Width,
		Height:      b.current.Height,
	}
}
