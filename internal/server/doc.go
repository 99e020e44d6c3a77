// Package server は、HTTPサーバーとWeb UIを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 再生操作・エクスポートのAPI、静的ファイルの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - ドロップされたファイルの受け付け
//   - 再生操作と全画面通知のリクエスト処理
//   - Server-Sent Events によるビューの配信
//   - 静的ファイル（HTML/CSS/JS）とAPI定義の配信
//
// 仕様:
//   - ルーティングはginを使用
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート
package server
