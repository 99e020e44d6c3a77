package imageset

import (
	"github.com/google/uuid"
)

// MIMETypeJPEG は受け付ける唯一の画像タイプ
const MIMETypeJPEG = "image/jpeg"

// ImageRef は読み込み済み画像への参照
type ImageRef struct {
	ID       string // 画像ID (UUID)
	Name     string // 元のファイル名
	MIMEType string // 常に image/jpeg
	Data     []byte // JPEGデータ
}

// Size はデータサイズを返す
func (r ImageRef) Size() int {
	return len(r.Data)
}

// Set は順序付きの画像集合。作成後は変更されない
type Set struct {
	images []ImageRef
}

// New は画像列から新しいSetを作成する
func New(images []ImageRef) Set {
	if len(images) == 0 {
		return Set{}
	}

	copied := make([]ImageRef, len(images))
	copy(copied, images)
	for i := range copied {
		if copied[i].ID == "" {
			copied[i].ID = uuid.NewString()
		}
	}
	return Set{images: copied}
}

// Len は画像数を返す
func (s Set) Len() int {
	return len(s.images)
}

// IsEmpty は画像が1枚も無いかを返す
func (s Set) IsEmpty() bool {
	return len(s.images) == 0
}

// At は指定位置の画像を返す
func (s Set) At(index int) (ImageRef, bool) {
	if index < 0 || index >= len(s.images) {
		return ImageRef{}, false
	}
	return s.images[index], true
}

// All は全画像のコピーを順序通りに返す
func (s Set) All() []ImageRef {
	out := make([]ImageRef, len(s.images))
	copy(out, s.images)
	return out
}

// TotalSize は全画像の合計バイト数を返す
func (s Set) TotalSize() int64 {
	var total int64
	for _, img := range s.images {
		total += int64(len(img.Data))
	}
	return total
}
