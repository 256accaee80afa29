package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// カメラ設定の検証
	if cfg.Camera.FPS <= 0 {
		t.Error("FPSが設定されていません")
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		t.Error("解像度が設定されていません")
	}

	// 保存先の検証
	if cfg.Storage.SettingsPath == "" || cfg.Storage.DatabasePath == "" {
		t.Error("保存先が設定されていません")
	}
}

// TestConfigLoad_EnvOverride は環境変数による上書きをテストする
func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("PORT", "9191")
	t.Setenv("CAMERA_SOURCE", "test_pattern")
	t.Setenv("CAMERA_DEVICE", "/dev/video4")
	t.Setenv("DATABASE_PATH", "/tmp/history.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("ポート番号が上書きされていません: %d", cfg.Server.Port)
	}
	if cfg.Camera.Source != "test_pattern" || cfg.Camera.Device != "/dev/video4" {
		t.Errorf("カメラ設定が上書きされていません: %+v", cfg.Camera)
	}
	if cfg.Storage.DatabasePath != "/tmp/history.db" {
		t.Errorf("データベースパスが上書きされていません: %s", cfg.Storage.DatabasePath)
	}
	if cfg.ServerAddress() != "0.0.0.0:9191" {
		t.Errorf("予期しないアドレス: %s", cfg.ServerAddress())
	}
}

// TestConfigLoad_File は設定ファイルの読み込みをテストする
func TestConfigLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shutterbox.yaml")
	content := `
server:
  port: 7070
  shutdown_timeout: 2s
camera:
  source: test_pattern
  fps: 30
storage:
  settings_path: /srv/shutterbox/settings.json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 7070 || cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("サーバー設定が読み込まれていません: %+v", cfg.Server)
	}
	if cfg.Camera.FPS != 30 || cfg.Camera.Source != "test_pattern" {
		t.Errorf("カメラ設定が読み込まれていません: %+v", cfg.Camera)
	}
	// ファイルにない項目はデフォルトのまま
	if cfg.Camera.Width != 1280 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("デフォルト値が失われています: %+v", cfg)
	}
	if cfg.Storage.SettingsPath != "/srv/shutterbox/settings.json" {
		t.Errorf("保存先が読み込まれていません: %s", cfg.Storage.SettingsPath)
	}
}

// TestConfigLoad_BrokenFile は壊れた設定ファイルをテストする
func TestConfigLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)

	if _, err := Load(); err == nil {
		t.Error("壊れた設定ファイルでエラーになりませんでした")
	}

	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("存在しない設定ファイルでエラーになりませんでした")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 70000 },
			expectErr: true,
		},
		{
			name:      "ポート番号0",
			modify:    func(c *Config) { c.Server.Port = 0 },
			expectErr: true,
		},
		{
			name:      "不明なソースタイプ",
			modify:    func(c *Config) { c.Camera.Source = "x11_screen" },
			expectErr: true,
		},
		{
			name:      "FPSが0",
			modify:    func(c *Config) { c.Camera.FPS = 0 },
			expectErr: true,
		},
		{
			name:      "JPEG品質が範囲外",
			modify:    func(c *Config) { c.Camera.JPEGQuality = 101 },
			expectErr: true,
		},
		{
			name:      "データベースパスが空",
			modify:    func(c *Config) { c.Storage.DatabasePath = "" },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("エラーが期待されませんでしたが、エラーが発生しました: %v", err)
			}
		})
	}
}

// TestGetEnvAsIntOrDefault は整数の環境変数の読み取りをテストする
func TestGetEnvAsIntOrDefault(t *testing.T) {
	t.Setenv("SHUTTERBOX_TEST_INT", "abc")
	if got := getEnvAsIntOrDefault("SHUTTERBOX_TEST_INT", 5); got != 5 {
		t.Errorf("不正な値ではデフォルトを返すべきです: %d", got)
	}

	t.Setenv("SHUTTERBOX_TEST_INT", "42")
	if got := getEnvAsIntOrDefault("SHUTTERBOX_TEST_INT", 5); got != 42 {
		t.Errorf("予期しない値: %d", got)
	}
}
