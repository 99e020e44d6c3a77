// Package imageset ドロップされた画像の順序付き集合を扱う
//
// # 責務
// - ドロップされたファイルからJPEGのみを抽出する
// - 読み込み後は変更されない画像列を提供する
//
// # 仕様
// - 受け付けるのは MIME タイプ image/jpeg のみ。それ以外は黙って除外する
// - 宣言された Content-Type が無い場合は内容から判定する
// - 空の集合も有効な状態として扱う
package imageset
