package session

import (
	"context"
	"errors"
	"fmt"

	"shutterbox/internal/storage"
)

var (
	// ErrInvalidParameter は遅延・枚数・録画時間の指定が不正であることを表す
	ErrInvalidParameter = errors.New("パラメータが不正です")
	// ErrSessionBusy は別のセッションが実行中であることを表す
	ErrSessionBusy = errors.New("別のセッションが実行中です")
	// ErrSourceLost は映像ソースが接続されていない、または途中で切断されたことを表す
	ErrSourceLost = errors.New("映像ソースが切断されました")
	// ErrNoFrame はフレームが一度も取得できなかったことを表す
	ErrNoFrame = errors.New("フレームがまだ届いていません")
	// ErrNoSession は停止対象のセッションがないことを表す
	ErrNoSession = errors.New("実行中のセッションがありません")

	// ErrStorageUnavailable は保存先ディレクトリを用意できないことを表す
	ErrStorageUnavailable = storage.ErrStorageUnavailable
	// ErrIOWrite はファイルの書き込みに失敗したことを表す
	ErrIOWrite = storage.ErrIOWrite
)

// writeError は書き込み失敗を ErrIOWrite として扱えるようにする
func writeError(err error) error {
	if errors.Is(err, ErrIOWrite) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIOWrite, err)
}

// stopReason はキャンセルされたコンテキストの終了理由を返す
//
// 明示的な中止は nil（正常な中断）、それ以外は原因となったエラーを返す。
func stopReason(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}
