// Package playback はスライドショーの再生カーソルを管理する
//
// # 責務
// - 画像集合に対する循環カーソル（現在位置）の保持
// - 再生中の自動送り（ティッカー）
// - 再生速度の管理
//
// # 状態遷移
//
//	Empty  --Load(1枚以上)--> Paused
//	Paused --Play-->          Playing
//	Playing --Pause-->        Paused
//	任意   --Clear-->         Empty
//	Paused/Playing --Load-->  Paused
//
// # 仕様
// - 全操作はゴルーチンセーフ
// - 画像が無い状態での Next/Previous/Seek/Play は何もしない
// - 自動送りは毎回現在の画像数を読み直す
// - 状態の変化は Subscribe で購読できる
package playback
