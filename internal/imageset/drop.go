package imageset

import (
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DroppedFile はドロップされた1ファイル分の入力
type DroppedFile struct {
	Name        string // ファイル名
	ContentType string // 宣言されたMIMEタイプ（空の場合あり）
	Data        []byte // ファイル内容
}

// FromDrop はドロップされたファイルからJPEGのみを順序通りに取り出す
func FromDrop(files []DroppedFile) Set {
	images := make([]ImageRef, 0, len(files))

	for _, f := range files {
		if !IsJPEG(f) {
			continue // JPEG以外は黙って除外
		}
		images = append(images, ImageRef{
			Name:     f.Name,
			MIMEType: MIMETypeJPEG,
			Data:     f.Data,
		})
	}

	return New(images)
}

// IsJPEG はファイルがJPEGとして受け付け可能かを判定する
func IsJPEG(f DroppedFile) bool {
	if len(f.Data) == 0 {
		return false
	}

	declared := normalizeContentType(f.ContentType)
	switch declared {
	case MIMETypeJPEG:
		return true
	case "", "application/octet-stream":
		// 宣言が無い場合は内容で判定
		return mimetype.Detect(f.Data).Is(MIMETypeJPEG)
	default:
		return false
	}
}

// normalizeContentType はパラメータを除いた小文字のMIMEタイプを返す
func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// LoadDir はディレクトリ内のJPEGをファイル名順に読み込む
func LoadDir(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Set{}, fmt.Errorf("ディレクトリの読み取りに失敗: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]DroppedFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("画像の読み込みに失敗 (%s): %v", name, err)
			continue
		}
		// 拡張子は信用せず内容で判定する
		files = append(files, DroppedFile{Name: name, Data: data})
	}

	return FromDrop(files), nil
}
