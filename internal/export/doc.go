// Package export は画像集合からタイムラプス動画を書き出す
//
// # 責務
// - 画像集合を順序通りにエンコーダの作業領域へ配置する
// - 再生間隔からフレームレートを決めてエンコードを依頼する
// - 出力をダウンロード可能な成果物として返す
//
// # 仕様
// - エンコードは外部の ffmpeg に委譲する (H.264 / yuv420p / mp4)
// - 配置はファイル名 frame_000000.jpg から連番で行い、順序を必ず保つ
// - 失敗時は失敗した段階 (LoadFailed / StageFailed / EncodeFailed / ReadFailed) を返す
// - 失敗時に部分的な成果物は返さない
//
// # 前提要件
//   - ffmpeg: 動画のエンコードに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//     Red Hat/Fedora: sudo dnf install ffmpeg
package export
