package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shutterbox/internal/camera"
	"shutterbox/internal/config"
)

type stubDiscovery struct {
	devices []string
	err     error
}

func (d *stubDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return d.devices, d.err
}

func (d *stubDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	for _, dev := range d.devices {
		if dev == device {
			return true
		}
	}
	return false
}

func (d *stubDiscovery) GetDeviceInfo(_ context.Context, device string) (*camera.DeviceInfo, error) {
	return &camera.DeviceInfo{Device: device, Name: "Stub Camera"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Camera.Source = string(camera.SourceTypeTestPattern)
	cfg.Camera.Width = 32
	cfg.Camera.Height = 16
	cfg.Camera.FPS = 20
	cfg.Storage.SettingsPath = filepath.Join(dir, "settings.json")
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "history.db")
	return cfg
}

func TestNewSource(t *testing.T) {
	ctx := context.Background()
	factory := camera.NewVideoSourceFactory()

	t.Run("テストパターン", func(t *testing.T) {
		cfg := config.CameraConfig{Source: "test_pattern", Width: 64, Height: 48, FPS: 5}
		source, err := NewSource(ctx, factory, cfg, &stubDiscovery{})
		if err != nil {
			t.Fatalf("NewSource failed: %v", err)
		}
		if source.GetInfo().Type != camera.SourceTypeTestPattern {
			t.Errorf("予期しないソースタイプ: %s", source.GetInfo().Type)
		}
		settings := source.GetCurrentSettings()
		if settings.Width != 64 || settings.Height != 48 || settings.FrameRate != 5 {
			t.Errorf("設定が反映されていません: %+v", settings)
		}
	})

	t.Run("USBカメラの自動検出", func(t *testing.T) {
		cfg := config.CameraConfig{Source: "usb_camera", Width: 640, Height: 480, FPS: 15}
		discovery := &stubDiscovery{devices: []string{"/dev/video2", "/dev/video5"}}
		source, err := NewSource(ctx, factory, cfg, discovery)
		if err != nil {
			t.Fatalf("NewSource failed: %v", err)
		}
		if source.GetInfo().Device != "/dev/video2" {
			t.Errorf("予期しないデバイス: %s", source.GetInfo().Device)
		}
	})

	t.Run("USBカメラが見つからない", func(t *testing.T) {
		cfg := config.CameraConfig{Source: "usb_camera"}
		_, err := NewSource(ctx, factory, cfg, &stubDiscovery{})
		if !errors.Is(err, camera.ErrNoDevice) {
			t.Errorf("ErrNoDevice が期待されましたが: %v", err)
		}
	})

	t.Run("検出の失敗", func(t *testing.T) {
		cfg := config.CameraConfig{Source: "usb_camera"}
		scanErr := errors.New("permission denied")
		_, err := NewSource(ctx, factory, cfg, &stubDiscovery{err: scanErr})
		if !errors.Is(err, scanErr) {
			t.Errorf("検出エラーが返されるべきです: %v", err)
		}
	})
}

// TestAppRun はアプリケーションの起動と停止をテストする
func TestAppRun(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !a.manager.Status().Connected {
		if time.Now().After(deadline) {
			t.Fatal("映像ソースが接続されませんでした")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("停止がタイムアウトしました")
	}

	if a.manager.Status().Connected {
		t.Error("停止後も映像ソースが接続されたままです")
	}
	if _, err := os.Stat(cfg.Storage.DatabasePath); err != nil {
		t.Errorf("履歴データベースが作成されていません: %v", err)
	}
}
