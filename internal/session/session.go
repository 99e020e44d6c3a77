// Package session は1回の閲覧セッションを管理する
//
// セッションは画像集合を所有し、再生コントローラとエクスポートジョブに同じ集合を渡す。
// エクスポート中は画像集合を変更する操作と新しいエクスポートを受け付けない。
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"komaokuri/internal/export"
	"komaokuri/internal/imageset"
	"komaokuri/internal/playback"
)

// セッションのエラー
var (
	ErrExportRunning = errors.New("エクスポート実行中です")
	ErrNoArtifact    = errors.New("ダウンロードできる動画がありません")
	ErrNoExport      = errors.New("エクスポートはまだ実行されていません")
)

// Session は画像集合・再生コントローラ・エクスポートをまとめる
type Session struct {
	controller *playback.Controller
	encoder    export.Encoder
	options    export.Options

	mu       sync.RWMutex
	job      *export.Job      // 最後に開始したジョブ
	artifact *export.Artifact // 最後に成功したジョブの成果物
	running  bool
	wg       sync.WaitGroup
}

// New は新しいSessionを作成する
func New(controller *playback.Controller, encoder export.Encoder, options export.Options) *Session {
	return &Session{
		controller: controller,
		encoder:    encoder,
		options:    options,
	}
}

// Controller は再生コントローラを返す
func (s *Session) Controller() *playback.Controller {
	return s.controller
}

// Load は画像集合を置き換える
func (s *Session) Load(images imageset.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrExportRunning
	}

	s.controller.Load(images)
	s.artifact = nil
	log.Printf("%d 枚の画像を読み込みました", images.Len())
	return nil
}

// Clear は画像集合を空にする
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrExportRunning
	}

	s.controller.Clear()
	s.artifact = nil
	return nil
}

// StartExport は現在の画像集合と再生間隔でエクスポートを開始する
// 画像が無い場合はジョブを作らずに export.ErrEmptyInput を返す
func (s *Session) StartExport(ctx context.Context) (export.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return export.Info{}, ErrExportRunning
	}

	images := s.controller.Images()
	if images.IsEmpty() {
		return export.Info{}, &export.Error{Stage: export.StageEmptyInput}
	}
	interval := s.controller.State().Interval

	job := export.NewJob(s.encoder, s.options)
	s.job = job
	s.artifact = nil
	s.running = true

	s.wg.Add(1)
	go s.runExport(ctx, job, images, interval)

	log.Printf("エクスポートを開始しました (job %s, %d 枚)", job.ID(), images.Len())
	info := job.Info()
	info.Status = export.StatusRunning
	info.Total = images.Len()
	info.FrameRate = export.FrameRate(interval)
	return info, nil
}

// runExport はジョブを実行し、結果をセッションに反映する
// 失敗しても再生状態には触れず、再試行できる状態に戻す
func (s *Session) runExport(ctx context.Context, job *export.Job, images imageset.Set, interval time.Duration) {
	defer s.wg.Done()

	artifact, err := job.Run(ctx, images, interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if err != nil {
		return
	}
	if s.job == job {
		s.artifact = artifact
	}
}

// Export は最後のエクスポートの状態を返す
func (s *Session) Export() (export.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.job == nil {
		return export.Info{}, ErrNoExport
	}
	return s.job.Info(), nil
}

// Artifact は最後に成功したエクスポートの成果物を返す
func (s *Session) Artifact() (*export.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.artifact == nil {
		return nil, ErrNoArtifact
	}
	return s.artifact, nil
}

// Running はエクスポート実行中かを返す
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Wait は実行中のエクスポートの終了を待つ
func (s *Session) Wait() {
	s.wg.Wait()
}
