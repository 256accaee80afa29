package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数
const ConfigFileEnv = "SHUTTERBOX_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`             // リッスンするホスト
	Port int    `yaml:"port" validate:"required,min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"` // 停止時の待ち時間
}

// CameraConfig は映像ソースの設定
type CameraConfig struct {
	Source      string `yaml:"source" validate:"oneof=usb_camera test_pattern"` // ソースタイプ
	Device      string `yaml:"device"`                                          // デバイスパス。空なら自動検出
	AutoConnect bool   `yaml:"auto_connect"`                                    // 起動時に接続する

	FPS         int `yaml:"fps" validate:"min=1,max=120"`          // フレームレート (fps)
	Width       int `yaml:"width" validate:"min=1"`                // 画像幅
	Height      int `yaml:"height" validate:"min=1"`               // 画像高さ
	JPEGQuality int `yaml:"jpeg_quality" validate:"min=1,max=100"` // 生画素をエンコードするときの品質
}

// StorageConfig は保存先の設定
type StorageConfig struct {
	SettingsPath string `yaml:"settings_path" validate:"required"` // 撮影設定のJSONファイル
	DatabasePath string `yaml:"database_path" validate:"required"` // セッション履歴のSQLiteファイル
}

// Default はデフォルト設定を返す
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // WebSocket用にタイムアウト無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Source:      "usb_camera",
			AutoConnect: true,
			FPS:         15,
			Width:       1280,
			Height:      720,
			JPEGQuality: 90,
		},
		Storage: StorageConfig{
			SettingsPath: filepath.Join(dataDir, "settings.json"),
			DatabasePath: filepath.Join(dataDir, "history.db"),
		},
	}
}

// Load は設定を読み込む
//
// デフォルト値、設定ファイル (SHUTTERBOX_CONFIG)、環境変数の順に上書きする。
// カレントディレクトリに .env があれば先に読み込む。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadFile はYAMLファイルの内容で設定を上書きする
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)

	c.Camera.Source = getEnvOrDefault("CAMERA_SOURCE", c.Camera.Source)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.FPS = getEnvAsIntOrDefault("CAMERA_FPS", c.Camera.FPS)
	c.Camera.Width = getEnvAsIntOrDefault("CAMERA_WIDTH", c.Camera.Width)
	c.Camera.Height = getEnvAsIntOrDefault("CAMERA_HEIGHT", c.Camera.Height)

	c.Storage.SettingsPath = getEnvOrDefault("SETTINGS_PATH", c.Storage.SettingsPath)
	c.Storage.DatabasePath = getEnvOrDefault("DATABASE_PATH", c.Storage.DatabasePath)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("無効な設定値 %s: %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "shutterbox")
	}
	return "data"
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
