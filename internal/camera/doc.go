// Package camera 映像ソースとカメラデバイスの検出を担う
//
// # 責務
// - V4L2デバイスの検出と既定デバイスの選択
// - ffmpeg経由のMJPEGストリームをフレーム単位に分割して配信
// - 実機なしで動かすための合成テストパターン
//
// # 仕様
//   - VideoSource はフレームチャンネルとエラーチャンネルを公開する
//   - ソースが停止または切断されるとフレームチャンネルはクローズされる
//   - 受信側が詰まっている場合は古いフレームを捨てて最新を優先する
//   - VideoSourceFactory がソースタイプごとの作成関数を保持する
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とフォーマット確認に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
