package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// FFmpegEncoder は ffmpeg コマンドを使うEncoder
type FFmpegEncoder struct {
	binary  string // ffmpeg の実行ファイル
	tempDir string // 作業領域を作成するディレクトリ
}

// NewFFmpegEncoder は新しいFFmpegEncoderを作成する
// tempDir が空の場合はOSの一時ディレクトリを使う
func NewFFmpegEncoder(binary, tempDir string) *FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{
		binary:  binary,
		tempDir: tempDir,
	}
}

// Load は ffmpeg の存在を確認し、ジョブ専用の作業ディレクトリを作成する
func (e *FFmpegEncoder) Load(ctx context.Context) (Workspace, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	if e.tempDir != "" {
		if err := os.MkdirAll(e.tempDir, 0755); err != nil {
			return nil, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
		}
	}

	dir, err := os.MkdirTemp(e.tempDir, "komaokuri-export-")
	if err != nil {
		return nil, fmt.Errorf("作業ディレクトリの作成に失敗: %w", err)
	}

	return &ffmpegWorkspace{binary: e.binary, dir: dir}, nil
}

// Validate はFFmpegが利用可能かチェックする
func (e *FFmpegEncoder) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("FFmpegが見つかりません。インストールしてください: %w", err)
	}

	return nil
}

// ffmpegWorkspace はジョブ1回分の作業ディレクトリ
type ffmpegWorkspace struct {
	binary string
	dir    string
}

func (w *ffmpegWorkspace) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("不正なファイル名: %q", name)
	}
	return filepath.Join(w.dir, name), nil
}

// WriteFile は作業ディレクトリにファイルを書き込む
func (w *ffmpegWorkspace) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := w.path(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("ファイルの書き込みに失敗 (%s): %w", name, err)
	}
	return nil
}

// Exec は作業ディレクトリで ffmpeg を実行する
func (w *ffmpegWorkspace) Exec(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Dir = w.dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg の実行に失敗: %w (output: %s)", err, string(output))
	}
	return nil
}

// ReadFile は作業ディレクトリからファイルを読み出す
func (w *ffmpegWorkspace) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := w.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み出しに失敗 (%s): %w", name, err)
	}
	return data, nil
}

// Close は作業ディレクトリを削除する
func (w *ffmpegWorkspace) Close() error {
	return os.RemoveAll(w.dir)
}

// BuildArgs はエンコード用の ffmpeg 引数を組み立てる
func BuildArgs(frameRate int, opts Options) []string {
	preset := opts.Preset
	if preset == "" {
		preset = DefaultOptions().Preset
	}

	return []string{
		"-y", // 上書き許可
		"-framerate", strconv.Itoa(frameRate),
		"-start_number", "0",
		"-i", FramePattern,
		// yuv420p は偶数サイズが必要
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", qualityToCRF(opts.Quality),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-f", "mp4",
		ArtifactFilename,
	}
}

// qualityToCRF は品質設定をFFmpegのCRF値に変換する
func qualityToCRF(quality int) string {
	// 品質1(低) -> CRF28, 品質5(高) -> CRF18
	crf := 28.0 - float64(quality-1)*2.5
	if crf < 18 {
		crf = 18
	}
	if crf > 28 {
		crf = 28
	}
	return strconv.FormatFloat(crf, 'f', 1, 64)
}
