package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// V4L2Capturer はffmpeg経由でV4L2デバイスからMJPEGフレームを取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
	}
}

// IsDeviceAvailable はV4L2デバイスが利用可能かチェックする
func (c *V4L2Capturer) IsDeviceAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", c.devicePath, "--info")
	return cmd.Run() == nil
}

// CaptureFrameAsJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *V4L2Capturer) CaptureFrameAsJPEG(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-i", c.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2", // 高品質JPEG
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// TestCapture はデバイステスト用の簡単なキャプチャ機能
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureFrameAsJPEG(testCtx)
	return err
}

// Stream は連続キャプチャを行い、JPEGフレームが揃うたびに onFrame を呼び出す
//
// ffmpegが終了するかコンテキストがキャンセルされるまでブロックする。
// コンテキストのキャンセルによる終了では nil を返す。
func (c *V4L2Capturer) Stream(ctx context.Context, onFrame func([]byte)) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	readErr := readJPEGStream(stdout, onFrame)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("フレーム読み取りエラー: %w", readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpegが異常終了しました: %w (stderr: %s)", waitErr, stderr.String())
	}
	return io.ErrUnexpectedEOF
}

// readJPEGStream はMJPEGバイトストリームを読み取り、完全なJPEGごとに onFrame を呼ぶ
func readJPEGStream(r io.Reader, onFrame func([]byte)) error {
	buffer := make([]byte, 256*1024)
	var pending []byte

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			var frames [][]byte
			frames, pending = splitJPEGFrames(pending)
			for _, frame := range frames {
				onFrame(frame)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitJPEGFrames はバッファから完全なJPEGを切り出し、残りのバイト列と共に返す
//
// SOIより前のゴミデータは捨てる。返すフレームは入力と領域を共有しない。
func splitJPEGFrames(data []byte) ([][]byte, []byte) {
	var frames [][]byte

	for {
		startIdx := bytes.Index(data, jpegSOI)
		if startIdx == -1 {
			// 末尾の0xFFはSOIの前半かもしれないので残す
			if len(data) > 0 && data[len(data)-1] == 0xFF {
				return frames, append([]byte(nil), 0xFF)
			}
			return frames, nil
		}

		endIdx := bytes.Index(data[startIdx+2:], jpegEOI)
		if endIdx == -1 {
			rest := make([]byte, len(data)-startIdx)
			copy(rest, data[startIdx:])
			return frames, rest
		}

		endIdx += startIdx + 2 + 2
		frame := make([]byte, endIdx-startIdx)
		copy(frame, data[startIdx:endIdx])
		frames = append(frames, frame)

		data = data[endIdx:]
	}
}
