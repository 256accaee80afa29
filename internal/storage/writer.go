package storage

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"shutterbox/internal/camera"
)

// FrameWriter はフレームを1枚のファイルとして書き出す
type FrameWriter interface {
	WriteFrame(path string, frame camera.Frame) error
}

// DefaultJPEGQuality は生画素フレームをエンコードするときの既定品質
const DefaultJPEGQuality = 90

// JPEGWriter はフレームをJPEGファイルとして保存する
//
// JPEGフレームはそのまま書き出し、rgb24/rgba はエンコードしてから書き出す。
// 一時ファイルに書いてからリネームするので、途中で失敗しても最終名に壊れたファイルは残らない。
type JPEGWriter struct {
	Quality int
}

// NewJPEGWriter は新しいJPEGWriterを作成する
func NewJPEGWriter(quality int) *JPEGWriter {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &JPEGWriter{Quality: quality}
}

// WriteFrame はフレームを path に保存する。失敗は ErrIOWrite でラップして返す
func (w *JPEGWriter) WriteFrame(path string, frame camera.Frame) error {
	if frame.IsEmpty() {
		return fmt.Errorf("%w: 空のフレーム (%s)", ErrIOWrite, filepath.Base(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.jpg")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // リネーム後は何もしない

	bw := bufio.NewWriter(tmp)
	if err := w.encode(bw, frame); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrIOWrite, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrIOWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOWrite, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIOWrite, err)
	}
	return nil
}

func (w *JPEGWriter) encode(bw *bufio.Writer, frame camera.Frame) error {
	if frame.Format == camera.FormatJPEG {
		_, err := bw.Write(frame.Data)
		return err
	}

	img, err := toImage(frame)
	if err != nil {
		return err
	}
	return jpeg.Encode(bw, img, &jpeg.Options{Quality: w.Quality})
}

// toImage は生画素フレームを image.Image に変換する
func toImage(frame camera.Frame) (image.Image, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("不正な画像サイズ: %dx%d", frame.Width, frame.Height)
	}
	pixels := frame.Width * frame.Height
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))

	switch frame.Format {
	case camera.FormatRGBA:
		if len(frame.Data) < pixels*4 {
			return nil, fmt.Errorf("RGBAデータが不足しています: %d < %d", len(frame.Data), pixels*4)
		}
		copy(img.Pix, frame.Data[:pixels*4])
	case camera.FormatRGB24:
		if len(frame.Data) < pixels*3 {
			return nil, fmt.Errorf("RGBデータが不足しています: %d < %d", len(frame.Data), pixels*3)
		}
		for i := 0; i < pixels; i++ {
			img.Pix[i*4+0] = frame.Data[i*3+0]
			img.Pix[i*4+1] = frame.Data[i*3+1]
			img.Pix[i*4+2] = frame.Data[i*3+2]
			img.Pix[i*4+3] = 0xFF
		}
	default:
		return nil, fmt.Errorf("サポートされていない画素フォーマット: %s", frame.Format)
	}
	return img, nil
}
