package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"komaokuri/internal/imageset"
)

// ErrAlreadyStarted は実行済みのジョブを再実行しようとした場合のエラー
var ErrAlreadyStarted = errors.New("ジョブは既に開始されています")

// Job は1回限りのエクスポート処理
type Job struct {
	id      string
	encoder Encoder
	options Options

	onProgress func(staged, total int) // 画像を1枚配置するごとに呼ばれる

	mu         sync.RWMutex
	status     Status
	staged     int
	total      int
	frameRate  int
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// NewJob は新しいJobを作成する
func NewJob(encoder Encoder, options Options) *Job {
	return &Job{
		id:      uuid.NewString(),
		encoder: encoder,
		options: options,
		status:  StatusNotStarted,
	}
}

// ID はジョブIDを返す
func (j *Job) ID() string {
	return j.id
}

// SetProgressCallback は配置の進捗通知を設定する。Run の前に呼ぶこと
func (j *Job) SetProgressCallback(callback func(staged, total int)) {
	j.onProgress = callback
}

// FrameRate は再生間隔からフレームレートを求める (最低1fps)
func FrameRate(interval time.Duration) int {
	ms := interval.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	fps := int(math.Round(1000 / float64(ms)))
	if fps < 1 {
		fps = 1
	}
	return fps
}

// FrameName は index 番目の入力画像のファイル名を返す
func FrameName(index int) string {
	return fmt.Sprintf(FramePattern, index)
}

// Run は画像集合を動画に変換する
func (j *Job) Run(ctx context.Context, images imageset.Set, interval time.Duration) (*Artifact, error) {
	if err := j.begin(images.Len(), FrameRate(interval)); err != nil {
		return nil, err
	}

	artifact, err := j.run(ctx, images)
	j.finish(err)
	if err != nil {
		log.Printf("エクスポートに失敗しました (job %s): %v", j.id, err)
		return nil, err
	}

	log.Printf("エクスポートが完了しました (job %s, %d フレーム, %d fps, %d bytes)",
		j.id, artifact.FrameCount, artifact.FrameRate, artifact.Size)
	return artifact, nil
}

func (j *Job) run(ctx context.Context, images imageset.Set) (*Artifact, error) {
	if images.IsEmpty() {
		return nil, &Error{Stage: StageEmptyInput}
	}

	frameRate := j.FrameRateValue()

	workspace, err := j.encoder.Load(ctx)
	if err != nil {
		return nil, &Error{Stage: StageLoad, Err: err}
	}
	defer func() {
		if err := workspace.Close(); err != nil {
			log.Printf("作業領域の削除に失敗: %v", err)
		}
	}()

	// 配置は必ず順番に行う
	for i, img := range images.All() {
		if err := workspace.WriteFile(ctx, FrameName(i), img.Data); err != nil {
			return nil, &Error{Stage: StageStage, Err: fmt.Errorf("%d 枚目 (%s): %w", i+1, img.Name, err)}
		}
		j.advance()
	}

	if err := workspace.Exec(ctx, BuildArgs(frameRate, j.options)); err != nil {
		return nil, &Error{Stage: StageEncode, Err: err}
	}

	data, err := workspace.ReadFile(ctx, ArtifactFilename)
	if err != nil {
		return nil, &Error{Stage: StageRead, Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Stage: StageRead, Err: errors.New("出力が空です")}
	}

	return &Artifact{
		Filename:   ArtifactFilename,
		MIMEType:   ArtifactMIMEType,
		Data:       data,
		Size:       len(data),
		FrameRate:  frameRate,
		FrameCount: images.Len(),
		CreatedAt:  time.Now(),
	}, nil
}

func (j *Job) begin(total, frameRate int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != StatusNotStarted {
		return ErrAlreadyStarted
	}
	j.status = StatusRunning
	j.total = total
	j.frameRate = frameRate
	j.startedAt = time.Now()
	return nil
}

func (j *Job) advance() {
	j.mu.Lock()
	j.staged++
	staged, total := j.staged, j.total
	j.mu.Unlock()

	if j.onProgress != nil {
		j.onProgress(staged, total)
	}
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.finishedAt = time.Now()
	if err != nil {
		j.status = StatusFailed
		j.err = err
		return
	}
	j.status = StatusCompleted
}

// FrameRateValue は決定したフレームレートを返す
func (j *Job) FrameRateValue() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.frameRate
}

// Err は失敗時のエラーを返す
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Info は現在の状態情報を返す
func (j *Job) Info() Info {
	j.mu.RLock()
	defer j.mu.RUnlock()

	info := Info{
		ID:         j.id,
		Status:     j.status,
		Staged:     j.staged,
		Total:      j.total,
		FrameRate:  j.frameRate,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		info.Error = j.err.Error()
		var exportErr *Error
		if errors.As(j.err, &exportErr) {
			info.Stage = exportErr.Stage
		}
	}
	return info
}
