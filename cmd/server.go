// Package main はShutterboxサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"shutterbox/internal/app"
	"shutterbox/internal/config"
)

func main() {
	// コマンドラインオプション
	var (
		host      = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port      = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		source    = flag.String("source", "", "映像ソース usb_camera または test_pattern (デフォルト: usb_camera)")
		device    = flag.String("device", "", "カメラデバイスのパス (デフォルト: 自動検出)")
		noConnect = flag.Bool("no-connect", false, "起動時に映像ソースを接続しない")
		help      = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Shutterbox")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *noConnect {
		cfg.Camera.AutoConnect = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("初期化に失敗しました: %v", err)
	}

	// サーバーを起動
	log.Printf("Shutterbox サーバーを起動します: %s", cfg.ServerAddress())
	if err := a.Run(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
