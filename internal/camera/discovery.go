package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoDevice は利用可能なカメラデバイスが見つからないことを表す
var ErrNoDevice = errors.New("利用可能なカメラデバイスがありません")

var videoDevicePattern = regexp.MustCompile(`^/dev/video(\d+)$`)

// DefaultDevice は検出されたデバイスのうち番号が最も小さいものを返す
func DefaultDevice(ctx context.Context, discovery Discovery) (string, error) {
	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0], nil
}

// LinuxDiscovery は /dev/video* からカメラデバイスを検出する
type LinuxDiscovery struct {
	// listFormats はデバイスのフォーマット一覧を返す。テストで差し替える
	listFormats func(ctx context.Context, device string) (string, error)
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{listFormats: v4l2ListFormats}
}

// ScanDevices はカラー映像を出力できるデバイスを番号順に返す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if !d.IsDeviceAvailable(ctx, match) {
			continue
		}
		// メタデータ専用ノード（UVCの奇数番号など）は除外する
		if !d.supportsColor(ctx, match) {
			continue
		}
		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable はデバイスファイルが存在し読み取り可能かチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	name := v4l2CardName(ctx, device)
	if name == "" {
		name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	return &DeviceInfo{
		Device: device,
		Name:   name,
		Driver: "uvcvideo",
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
		},
		Formats: []string{"MJPEG", "YUYV"},
	}, nil
}

func (d *LinuxDiscovery) supportsColor(ctx context.Context, device string) bool {
	out, err := d.listFormats(ctx, device)
	if err != nil {
		return false
	}
	return strings.Contains(out, "YUYV") || strings.Contains(out, "MJPG")
}

func v4l2ListFormats(ctx context.Context, device string) (string, error) {
	out, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext").Output()
	return string(out), err
}

// v4l2CardName は v4l2-ctl の "Card type" 行からカメラ名を取り出す
func v4l2CardName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err != nil {
		return ""
	}
	return parseCardType(string(out))
}

func parseCardType(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// extractDeviceNumber は /dev/videoXX から XX を取り出す
func extractDeviceNumber(device string) int {
	matches := videoDevicePattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}
	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}
