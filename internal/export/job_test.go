package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"komaokuri/internal/imageset"
)

// fakeEncoder は呼び出しを記録するEncoder
type fakeEncoder struct {
	mu        sync.Mutex
	loads     int
	failLoad  error
	workspace *fakeWorkspace
}

func (e *fakeEncoder) Load(ctx context.Context) (Workspace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loads++
	if e.failLoad != nil {
		return nil, e.failLoad
	}
	return e.workspace, nil
}

type fakeWorkspace struct {
	written   []string
	files     map[string][]byte
	execArgs  [][]string
	closed    bool
	failWrite int // この番号 (1始まり) の書き込みで失敗する
	failExec  error
	failRead  error
	output    []byte
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{files: make(map[string][]byte), output: []byte("mp4-bytes")}
}

func (w *fakeWorkspace) WriteFile(ctx context.Context, name string, data []byte) error {
	if w.failWrite > 0 && len(w.written)+1 == w.failWrite {
		return errors.New("disk full")
	}
	w.written = append(w.written, name)
	w.files[name] = data
	return nil
}

func (w *fakeWorkspace) Exec(ctx context.Context, args []string) error {
	w.execArgs = append(w.execArgs, args)
	return w.failExec
}

func (w *fakeWorkspace) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if w.failRead != nil {
		return nil, w.failRead
	}
	if name != ArtifactFilename {
		return nil, fmt.Errorf("unexpected file %s", name)
	}
	return w.output, nil
}

func (w *fakeWorkspace) Close() error {
	w.closed = true
	return nil
}

func makeSet(n int) imageset.Set {
	images := make([]imageset.ImageRef, n)
	for i := range images {
		images[i] = imageset.ImageRef{Name: fmt.Sprintf("img%d.jpg", i), MIMEType: imageset.MIMETypeJPEG, Data: []byte(fmt.Sprintf("jpeg-%d", i))}
	}
	return imageset.New(images)
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// TestRunFiveImages は5枚・200ms間隔のエクスポートをテストする
func TestRunFiveImages(t *testing.T) {
	ws := newFakeWorkspace()
	enc := &fakeEncoder{workspace: ws}
	job := NewJob(enc, DefaultOptions())

	var progress []int
	job.SetProgressCallback(func(staged, total int) {
		if total != 5 {
			t.Errorf("総数が不正: %d", total)
		}
		progress = append(progress, staged)
	})

	images := makeSet(5)
	artifact, err := job.Run(context.Background(), images, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if artifact.Filename != "timelapse.mp4" {
		t.Errorf("ファイル名が不正: %s", artifact.Filename)
	}
	if artifact.MIMEType != "video/mp4" {
		t.Errorf("MIMEタイプが不正: %s", artifact.MIMEType)
	}
	if artifact.FrameRate != 5 {
		t.Errorf("フレームレートが不正: %d", artifact.FrameRate)
	}
	if !bytes.Equal(artifact.Data, ws.output) {
		t.Error("出力データが一致しません")
	}

	// 順序通りに配置されていること
	if len(ws.written) != 5 {
		t.Fatalf("配置数が不正: %d", len(ws.written))
	}
	for i, name := range ws.written {
		if want := fmt.Sprintf("frame_%06d.jpg", i); name != want {
			t.Errorf("配置名が不正: got %s, want %s", name, want)
		}
		img, _ := images.At(i)
		if !bytes.Equal(ws.files[name], img.Data) {
			t.Errorf("%s の内容が %d 枚目の画像と一致しません", name, i)
		}
	}

	if len(ws.execArgs) != 1 {
		t.Fatalf("エンコードの呼び出し回数が不正: %d", len(ws.execArgs))
	}
	args := ws.execArgs[0]
	if got := argValue(args, "-framerate"); got != "5" {
		t.Errorf("framerate 引数が不正: %s", got)
	}
	if got := argValue(args, "-i"); got != FramePattern {
		t.Errorf("入力パターンが不正: %s", got)
	}
	if got := argValue(args, "-c:v"); got != "libx264" {
		t.Errorf("コーデックが不正: %s", got)
	}
	if got := argValue(args, "-pix_fmt"); got != "yuv420p" {
		t.Errorf("ピクセルフォーマットが不正: %s", got)
	}
	if args[len(args)-1] != ArtifactFilename {
		t.Errorf("出力ファイル名が不正: %s", args[len(args)-1])
	}

	if !ws.closed {
		t.Error("作業領域が削除されていません")
	}
	if fmt.Sprint(progress) != "[1 2 3 4 5]" {
		t.Errorf("進捗通知が不正: %v", progress)
	}

	info := job.Info()
	if info.Status != StatusCompleted || info.Staged != 5 || info.Total != 5 {
		t.Errorf("ジョブ情報が不正: %+v", info)
	}
}

// TestRunEmptyInput は画像なしでエンコーダが呼ばれないことをテストする
func TestRunEmptyInput(t *testing.T) {
	enc := &fakeEncoder{workspace: newFakeWorkspace()}
	job := NewJob(enc, DefaultOptions())

	artifact, err := job.Run(context.Background(), imageset.New(nil), 200*time.Millisecond)
	if artifact != nil {
		t.Error("空入力で成果物が返されました")
	}
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("EmptyInput ではありません: %v", err)
	}
	if enc.loads != 0 {
		t.Error("空入力でエンコーダが呼ばれました")
	}
	if info := job.Info(); info.Status != StatusFailed || info.Stage != StageEmptyInput {
		t.Errorf("ジョブ情報が不正: %+v", info)
	}
}

// TestRunFailures は各段階の失敗をテストする
func TestRunFailures(t *testing.T) {
	testCases := []struct {
		name      string
		setup     func(enc *fakeEncoder, ws *fakeWorkspace)
		wantErr   error
		wantStage Stage
		wantClose bool
	}{
		{
			name:      "エンコーダの準備に失敗",
			setup:     func(enc *fakeEncoder, ws *fakeWorkspace) { enc.failLoad = errors.New("ffmpeg not found") },
			wantErr:   ErrLoadFailed,
			wantStage: StageLoad,
			wantClose: false,
		},
		{
			name:      "配置に失敗",
			setup:     func(enc *fakeEncoder, ws *fakeWorkspace) { ws.failWrite = 2 },
			wantErr:   ErrStageFailed,
			wantStage: StageStage,
			wantClose: true,
		},
		{
			name:      "エンコードに失敗",
			setup:     func(enc *fakeEncoder, ws *fakeWorkspace) { ws.failExec = errors.New("exit status 1") },
			wantErr:   ErrEncodeFailed,
			wantStage: StageEncode,
			wantClose: true,
		},
		{
			name:      "読み出しに失敗",
			setup:     func(enc *fakeEncoder, ws *fakeWorkspace) { ws.failRead = errors.New("no such file") },
			wantErr:   ErrReadFailed,
			wantStage: StageRead,
			wantClose: true,
		},
		{
			name:      "出力が空",
			setup:     func(enc *fakeEncoder, ws *fakeWorkspace) { ws.output = nil },
			wantErr:   ErrReadFailed,
			wantStage: StageRead,
			wantClose: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := newFakeWorkspace()
			enc := &fakeEncoder{workspace: ws}
			tc.setup(enc, ws)

			job := NewJob(enc, DefaultOptions())
			artifact, err := job.Run(context.Background(), makeSet(3), 150*time.Millisecond)
			if artifact != nil {
				t.Error("失敗時に成果物が返されました")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("エラーの段階が不正: %v", err)
			}
			var exportErr *Error
			if !errors.As(err, &exportErr) || exportErr.Stage != tc.wantStage {
				t.Errorf("Stage が不正: %v", err)
			}
			if ws.closed != tc.wantClose {
				t.Errorf("作業領域の削除状態が不正: %v", ws.closed)
			}
			if info := job.Info(); info.Status != StatusFailed || info.Stage != tc.wantStage || info.Error == "" {
				t.Errorf("ジョブ情報が不正: %+v", info)
			}
		})
	}
}

// TestRunOnlyOnce はジョブが1回しか実行できないことをテストする
func TestRunOnlyOnce(t *testing.T) {
	job := NewJob(&fakeEncoder{workspace: newFakeWorkspace()}, DefaultOptions())
	if _, err := job.Run(context.Background(), makeSet(1), time.Second); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := job.Run(context.Background(), makeSet(1), time.Second); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("2回目の実行が拒否されていません: %v", err)
	}
}

// TestFrameRate はフレームレートの計算をテストする
func TestFrameRate(t *testing.T) {
	testCases := []struct {
		interval time.Duration
		want     int
	}{
		{200 * time.Millisecond, 5},
		{150 * time.Millisecond, 7},
		{1900 * time.Millisecond, 1},
		{10 * time.Millisecond, 100},
		{5 * time.Second, 1},
		{0, 1000},
	}

	for _, tc := range testCases {
		if got := FrameRate(tc.interval); got != tc.want {
			t.Errorf("FrameRate(%v) = %d, want %d", tc.interval, got, tc.want)
		}
	}
}

// TestErrorIs は段階ごとのエラー判定をテストする
func TestErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrap: %w", &Error{Stage: StageEncode, Err: cause})

	if !errors.Is(err, ErrEncodeFailed) {
		t.Error("ErrEncodeFailed と判定されません")
	}
	if errors.Is(err, ErrLoadFailed) {
		t.Error("別の段階と判定されました")
	}
	if !errors.Is(err, cause) {
		t.Error("元のエラーまで辿れません")
	}
	if !strings.Contains(err.Error(), "EncodeFailed") {
		t.Errorf("エラーメッセージに段階が含まれていません: %s", err)
	}
}

// TestBuildArgsQuality は品質設定がCRFに反映されることをテストする
func TestBuildArgsQuality(t *testing.T) {
	testCases := []struct {
		quality int
		want    string
	}{
		{1, "28.0"},
		{3, "23.0"},
		{5, "18.0"},
		{9, "18.0"},
		{0, "28.0"},
	}

	for _, tc := range testCases {
		args := BuildArgs(5, Options{Quality: tc.quality})
		if got := argValue(args, "-crf"); got != tc.want {
			t.Errorf("quality %d: crf = %s, want %s", tc.quality, got, tc.want)
		}
		if got := argValue(args, "-preset"); got != "fast" {
			t.Errorf("既定のプリセットが不正: %s", got)
		}
	}
}

// TestFFmpegEncoderIntegration は実際の ffmpeg で動画を作成する
func TestFFmpegEncoderIntegration(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg が見つからないためスキップします")
	}

	images := make([]imageset.ImageRef, 3)
	for i := range images {
		var buf bytes.Buffer
		img := image.NewRGBA(image.Rect(0, 0, 33, 17))
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatalf("JPEGエンコードに失敗: %v", err)
		}
		images[i] = imageset.ImageRef{Name: fmt.Sprintf("%d.jpg", i), Data: buf.Bytes()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	job := NewJob(NewFFmpegEncoder("", t.TempDir()), DefaultOptions())
	artifact, err := job.Run(ctx, imageset.New(images), 500*time.Millisecond)
	if err != nil {
		t.Fatalf("エクスポートに失敗しました: %v", err)
	}
	if artifact.Size == 0 {
		t.Error("出力が空です")
	}
}

// TestFFmpegEncoderMissingBinary は ffmpeg が無い場合に LoadFailed になることをテストする
func TestFFmpegEncoderMissingBinary(t *testing.T) {
	job := NewJob(NewFFmpegEncoder("/nonexistent/ffmpeg", t.TempDir()), DefaultOptions())
	_, err := job.Run(context.Background(), makeSet(2), 200*time.Millisecond)
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("LoadFailed ではありません: %v", err)
	}
}
