// Package server は、撮影・録画を操作するHTTP APIと進捗イベントの配信を提供します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - 撮影・録画の開始と中止、保存先の変更
//   - セッション履歴の参照
//   - 進捗イベントのWebSocket配信
//
// ルーティングにはginを、WebSocketにはgorilla/websocketを使用します。
// セッションのエラーは種類ごとにHTTPステータスへ変換されます。
package server
