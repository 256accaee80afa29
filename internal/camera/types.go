package camera

import (
	"context"
	"time"
)

// Status は映像ソースの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // 停止中
	StatusActive   Status = "active"   // 動作中
	StatusError    Status = "error"    // エラーが発生
)

// PixelFormat はフレームの画素フォーマット
type PixelFormat string

const (
	FormatJPEG  PixelFormat = "jpeg"  // エンコード済みJPEG（MJPEGストリームの1枚）
	FormatRGB24 PixelFormat = "rgb24" // 1画素3バイト
	FormatRGBA  PixelFormat = "rgba"  // 1画素4バイト
)

// Frame は映像ソースから届いた1枚の画像
//
// 受信後は変更しない。利用側は Clone したコピーを使う。
type Frame struct {
	Seq       uint64      // ソース内の通し番号
	Width     int         // 画像幅
	Height    int         // 画像高さ
	Format    PixelFormat // 画素フォーマット
	Data      []byte      // 画素データまたはJPEGデータ
	Timestamp time.Time   // 到着時刻
}

// Clone はデータ領域を含めたフレームの複製を返す
func (f Frame) Clone() Frame {
	c := f
	if f.Data != nil {
		c.Data = make([]byte, len(f.Data))
		copy(c.Data, f.Data)
	}
	return c
}

// IsEmpty はフレームにデータが含まれていないかを返す
func (f Frame) IsEmpty() bool {
	return len(f.Data) == 0
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       // デバイスパス
	Name        string       // デバイス名
	Driver      string       // ドライバー名
	Resolutions []Resolution // サポートされる解像度
	Formats     []string     // サポートされるフォーマット
}

// Resolution は解像度を表す
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}
