package export

import (
	"fmt"
	"time"
)

// 成果物の固定値
const (
	ArtifactFilename = "timelapse.mp4"
	ArtifactMIMEType = "video/mp4"

	// FramePattern は作業領域での入力画像の命名規則
	FramePattern = "frame_%06d.jpg"
)

// Status はエクスポートジョブの状態
type Status string

// Status の定数定義
const (
	StatusNotStarted Status = "not_started" // 未開始
	StatusRunning    Status = "running"     // 実行中
	StatusCompleted  Status = "completed"   // 完了
	StatusFailed     Status = "failed"      // 失敗
)

// IsFinished は終了状態かを返す
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage は失敗した段階
type Stage string

// Stage の定数定義
const (
	StageEmptyInput Stage = "EmptyInput"   // 画像なし
	StageLoad       Stage = "LoadFailed"   // エンコーダの準備
	StageStage      Stage = "StageFailed"  // 入力画像の配置
	StageEncode     Stage = "EncodeFailed" // エンコード
	StageRead       Stage = "ReadFailed"   // 出力の読み出し
)

// Error はエクスポートの失敗を表す
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("エクスポートに失敗 (%s)", e.Stage)
	}
	return fmt.Sprintf("エクスポートに失敗 (%s): %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is は同じ段階の失敗かを判定する
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Stage == e.Stage
}

// errors.Is で段階を判定するための値
var (
	ErrEmptyInput   = &Error{Stage: StageEmptyInput}
	ErrLoadFailed   = &Error{Stage: StageLoad}
	ErrStageFailed  = &Error{Stage: StageStage}
	ErrEncodeFailed = &Error{Stage: StageEncode}
	ErrReadFailed   = &Error{Stage: StageRead}
)

// Artifact はダウンロード可能な動画
type Artifact struct {
	Filename   string    `json:"filename"`
	MIMEType   string    `json:"mime_type"`
	Data       []byte    `json:"-"`
	Size       int       `json:"size"`
	FrameRate  int       `json:"frame_rate"`
	FrameCount int       `json:"frame_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Info はジョブの状態情報
type Info struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Staged     int       `json:"staged"` // 配置済みの画像数
	Total      int       `json:"total"`  // 画像の総数
	FrameRate  int       `json:"frame_rate"`
	Stage      Stage     `json:"stage,omitempty"` // 失敗した段階
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Options はエンコード設定
type Options struct {
	Quality int    `yaml:"quality"` // 動画品質 (1-5)
	Preset  string `yaml:"preset"`  // x264 プリセット
}

// DefaultOptions はデフォルトのエンコード設定を返す
func DefaultOptions() Options {
	return Options{
		Quality: 3,
		Preset:  "fast",
	}
}
