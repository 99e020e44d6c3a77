package server

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
)

//go:embed all:dist
var embedFS embed.FS

// openAPISpec はAPI定義 (OpenAPI 3.0)
//
//go:embed openapi.yaml
var openAPISpec []byte

// GetStaticFS は dist 全体のファイルシステムを返す
func GetStaticFS() http.FileSystem {
	// dist のサブディレクトリを取得
	staticFS, err := fs.Sub(embedFS, "dist")
	if err != nil {
		log.Fatalf("埋め込み静的ファイルシステムの作成に失敗: %v", err)
	}
	return http.FS(staticFS)
}

// GetAssetsFS は dist/assets のファイルシステムを返す
func GetAssetsFS() http.FileSystem {
	// dist/assets のサブディレクトリを取得
	assetsFS, err := fs.Sub(embedFS, "dist/assets")
	if err != nil {
		log.Fatalf("埋め込みアセットファイルシステムの作成に失敗: %v", err)
	}
	return http.FS(assetsFS)
}

// getIndexHTML は index.html の内容を返す
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("dist/index.html")
	if err != nil {
		log.Fatalf("埋め込みindex.htmlの読み込みに失敗: %v", err)
	}
	return data
}
