// Package presenter は表示面（ビューポート）の状態を管理する
//
// 再生コントローラが発行する状態を受け取り、表示用のビューに変換する。
// 全画面の開始・終了はプラットフォームからの入力イベントとして受け取る。
package presenter
