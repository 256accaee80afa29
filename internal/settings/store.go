// Package settings は利用者が変更できる撮影設定を JSON ファイルに保存する
package settings

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Settings は撮影・録画の既定値
type Settings struct {
	OutputDirectory string  `json:"output_directory"`
	CaptureDelay    float64 `json:"capture_delay"`   // 秒
	RecordDuration  float64 `json:"record_duration"` // 秒
	BurstCount      int     `json:"burst_count"`     // 1秒間に撮影する枚数
}

// DefaultOutputDirectory は既定の保存先を返す
func DefaultOutputDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "captures"
	}
	return filepath.Join(home, "Pictures", "shutterbox")
}

// Default はデフォルト設定を返す
func Default() Settings {
	return Settings{
		OutputDirectory: DefaultOutputDirectory(),
		CaptureDelay:    0,
		RecordDuration:  10,
		BurstCount:      1,
	}
}

// normalize は不正な値を既定値に置き換える
func (s Settings) normalize() Settings {
	d := Default()
	if strings.TrimSpace(s.OutputDirectory) == "" {
		s.OutputDirectory = d.OutputDirectory
	}
	if s.CaptureDelay < 0 {
		s.CaptureDelay = d.CaptureDelay
	}
	if s.RecordDuration <= 0 {
		s.RecordDuration = d.RecordDuration
	}
	if s.BurstCount < 1 {
		s.BurstCount = d.BurstCount
	}
	return s
}

// FileStore は設定を1つのJSONファイルで管理する
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore は新しいFileStoreを作成する
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path は設定ファイルのパスを返す
func (s *FileStore) Path() string {
	return s.path
}

// Load は設定を読み込む
//
// ファイルがなければデフォルト設定で作成する。読み込めない場合はデフォルト設定を返す。
func (s *FileStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		settings := Default()
		if err := s.write(settings); err != nil {
			log.Printf("デフォルト設定の保存に失敗: %v", err)
		}
		return settings, nil
	}
	if err != nil {
		log.Printf("設定ファイルの読み込みに失敗しました。デフォルト設定を使用します: %v", err)
		return Default(), nil
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		log.Printf("設定ファイルの解析に失敗しました。デフォルト設定を使用します: %v", err)
		return Default(), nil
	}
	return settings.normalize(), nil
}

// Save は設定を書き込む
func (s *FileStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(settings.normalize())
}

func (s *FileStore) write(settings Settings) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("設定ディレクトリの作成に失敗: %w", err)
		}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("設定のエンコードに失敗: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("設定ファイルの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("設定ファイルの書き込みに失敗: %w", err)
	}
	return nil
}
