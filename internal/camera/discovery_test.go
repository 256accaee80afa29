package camera

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices []string
	err     error
}

func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return m.devices, m.err
}

func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	for _, d := range m.devices {
		if d == device {
			return true
		}
	}
	return false
}

func (m *MockDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !m.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}
	return &DeviceInfo{Device: device, Name: "テストカメラ", Driver: "mock"}, nil
}

func TestLinuxDiscovery_ScanDevices(t *testing.T) {
	ctx := context.Background()
	discovery := NewLinuxDiscovery()

	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		t.Fatalf("ScanDevices failed: %v", err)
	}

	// デバイスが見つからない環境もあるため、エラーがないことだけを確認
	t.Logf("Found %d video devices", len(devices))
}

func TestLinuxDiscovery_IsDeviceAvailable(t *testing.T) {
	ctx := context.Background()
	discovery := NewLinuxDiscovery()

	if discovery.IsDeviceAvailable(ctx, "/dev/video999") {
		t.Error("Expected non-existent device to be unavailable")
	}

	if discovery.IsDeviceAvailable(ctx, "/invalid/path") {
		t.Error("Expected invalid path to be unavailable")
	}
}

func TestDefaultDevice(t *testing.T) {
	ctx := context.Background()

	device, err := DefaultDevice(ctx, &MockDiscovery{devices: []string{"/dev/video0", "/dev/video2"}})
	if err != nil {
		t.Fatalf("DefaultDevice failed: %v", err)
	}
	if device != "/dev/video0" {
		t.Errorf("Expected /dev/video0, got %s", device)
	}

	_, err = DefaultDevice(ctx, &MockDiscovery{})
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice, got %v", err)
	}

	scanErr := errors.New("scan failed")
	_, err = DefaultDevice(ctx, &MockDiscovery{err: scanErr})
	if !errors.Is(err, scanErr) {
		t.Errorf("Expected scan error, got %v", err)
	}
}

func TestParseCardType(t *testing.T) {
	info := "Driver Info:\n\tDriver name      : uvcvideo\n\tCard type        : HD Pro Webcam C920\n\tBus info         : usb-0000:00:14.0-1\n"
	if got := parseCardType(info); got != "HD Pro Webcam C920" {
		t.Errorf("Expected card type, got %q", got)
	}
	if got := parseCardType("no card here"); got != "" {
		t.Errorf("Expected empty card type, got %q", got)
	}
}

func TestExtractDeviceNumber(t *testing.T) {
	testCases := []struct {
		device string
		want   int
	}{
		{"/dev/video0", 0},
		{"/dev/video12", 12},
		{"/dev/null", 0},
	}

	for _, tc := range testCases {
		if got := extractDeviceNumber(tc.device); got != tc.want {
			t.Errorf("extractDeviceNumber(%q) = %d, want %d", tc.device, got, tc.want)
		}
	}
}
