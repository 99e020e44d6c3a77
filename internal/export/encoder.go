package export

import (
	"context"
)

// Encoder は外部の動画エンコード機能
type Encoder interface {
	// Load はエンコーダを準備し、ジョブ専用の作業領域を返す
	Load(ctx context.Context) (Workspace, error)
}

// Workspace はエンコーダの作業領域
type Workspace interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	Exec(ctx context.Context, args []string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Close() error
}
