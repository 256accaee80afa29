// Package storage は撮影結果の保存先ディレクトリとファイル書き込みを担う
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrStorageUnavailable は保存先ディレクトリを用意できないことを表す
	ErrStorageUnavailable = errors.New("保存先を利用できません")
	// ErrIOWrite は1枚のファイル書き込みに失敗したことを表す
	ErrIOWrite = errors.New("ファイルの書き込みに失敗しました")
)

const (
	timestampLayout = "20060102_150405"
	dirPerm         = 0755
)

// Allocator はセッションごとの保存先ディレクトリを払い出す
type Allocator struct {
	// exists はパスの存在確認。テストで差し替える
	exists func(path string) bool
}

// NewAllocator は新しいAllocatorを作成する
func NewAllocator() *Allocator {
	return &Allocator{exists: pathExists}
}

// AllocateSessionDirectory は root 配下に now を名前にした新しいディレクトリを作成して返す
//
// 同名のディレクトリがすでにある場合は _1, _2, ... を付けて空いている名前を探す。
// 既存のディレクトリを返すことはない。
func (a *Allocator) AllocateSessionDirectory(root string, now time.Time) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: 保存先が指定されていません", ErrStorageUnavailable)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	base := now.Format(timestampLayout)
	for suffix := 0; ; suffix++ {
		name := base
		if suffix > 0 {
			name = fmt.Sprintf("%s_%d", base, suffix)
		}
		dir := filepath.Join(root, name)
		if a.exists(dir) {
			continue
		}

		err := os.Mkdir(dir, dirPerm)
		if errors.Is(err, os.ErrExist) {
			// 確認後に他から作成された
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return dir, nil
	}
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// PhotoName は単写のファイル名を返す
func PhotoName(t time.Time) string {
	return fmt.Sprintf("photo_%s.jpg", t.Format(timestampLayout))
}

// BurstShotName は連写 index 枚目 (1始まり) のファイル名を返す
//
// 連写開始時刻、開始からの経過秒、枚数を含むので、撮影順と経過時間のどちらで並べても同じ順になる。
func BurstShotName(start time.Time, elapsed time.Duration, index, total int) string {
	return fmt.Sprintf("burst_%s_%.3fsec_%02dof%02d.jpg",
		start.Format(timestampLayout), elapsed.Seconds(), index, total)
}

// RecordingBaseName は録画フレームの共通接頭辞を返す
func RecordingBaseName(t time.Time) string {
	return "video_" + t.Format(timestampLayout)
}

// RecordingFrameName は録画フレームのファイル名を返す
func RecordingFrameName(base string, index int) string {
	return fmt.Sprintf("%s_frame_%06d.jpg", base, index)
}
