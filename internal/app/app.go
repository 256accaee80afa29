// Package app は設定から各部品を組み立ててサーバーを起動する
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shutterbox/internal/camera"
	"shutterbox/internal/config"
	"shutterbox/internal/framebuffer"
	"shutterbox/internal/repository/sqlite"
	"shutterbox/internal/server"
	"shutterbox/internal/session"
	"shutterbox/internal/settings"
	"shutterbox/internal/storage"
)

// App は起動中のアプリケーション
type App struct {
	config  *config.Config
	db      *sqlite.DB
	manager *session.Manager
	server  *server.Server
	factory camera.VideoSourceFactory
}

// New は設定から各部品を組み立てる
func New(cfg *config.Config) (*App, error) {
	store := settings.NewFileStore(cfg.Storage.SettingsPath)

	db, err := sqlite.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("履歴データベースの初期化に失敗: %w", err)
	}
	history := sqlite.NewSessionRepository(db)

	manager := session.NewManager(
		framebuffer.New(),
		store,
		storage.NewJPEGWriter(cfg.Camera.JPEGQuality),
		session.DefaultConfig(),
	)
	manager.SetHistoryRecorder(history)

	srv := server.New(cfg, server.Dependencies{
		Controller: manager,
		Settings:   store,
		History:    history,
	})

	return &App{
		config:  cfg,
		db:      db,
		manager: manager,
		server:  srv,
		factory: camera.NewVideoSourceFactory(),
	}, nil
}

// Run は映像ソースを接続してサーバーを起動し、停止まで待つ
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.config.Camera.AutoConnect {
		if err := a.connect(ctx); err != nil {
			// カメラがなくてもAPIは使えるようにする
			log.Printf("映像ソースを接続できませんでした: %v", err)
		}
	}

	return a.server.Start(ctx)
}

func (a *App) connect(ctx context.Context) error {
	source, err := NewSource(ctx, a.factory, a.config.Camera, camera.NewLinuxDiscovery())
	if err != nil {
		return err
	}
	return a.manager.ConnectSource(ctx, source)
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.manager.Stop(ctx); err != nil {
		log.Printf("セッション管理の停止に失敗: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("履歴データベースのクローズに失敗: %v", err)
	}
}

// NewSource は設定に従って映像ソースを作成する
//
// USBカメラでデバイスが未指定の場合は検出された最初のデバイスを使う。
func NewSource(ctx context.Context, factory camera.VideoSourceFactory, cfg config.CameraConfig, discovery camera.Discovery) (camera.VideoSource, error) {
	sourceType := camera.VideoSourceType(cfg.Source)
	device := cfg.Device

	if sourceType == camera.SourceTypeUSBCamera && device == "" {
		found, err := camera.DefaultDevice(ctx, discovery)
		if err != nil {
			if errors.Is(err, camera.ErrNoDevice) {
				return nil, err
			}
			return nil, fmt.Errorf("カメラデバイスの検出に失敗: %w", err)
		}
		device = found
	}

	return factory.CreateSource(sourceType, camera.SourceConfig{
		Device: device,
		Settings: camera.VideoSettings{
			Width:     cfg.Width,
			Height:    cfg.Height,
			FrameRate: cfg.FPS,
		},
	})
}
