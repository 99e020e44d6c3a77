package playback

import (
	"time"

	"komaokuri/internal/imageset"
)

// State は再生コントローラの状態
type State string

// State の定数定義
const (
	StateEmpty   State = "empty"   // 画像なし
	StatePaused  State = "paused"  // 一時停止中
	StatePlaying State = "playing" // 再生中
)

// 再生間隔の範囲
const (
	MinInterval     = 10 * time.Millisecond
	MaxInterval     = 1900 * time.Millisecond
	DefaultInterval = 150 * time.Millisecond
)

// Snapshot はある時点の再生状態
type Snapshot struct {
	State    State         `json:"state"`
	Index    int           `json:"index"`     // HasIndex が false の場合は0
	HasIndex bool          `json:"has_index"` // 画像が無い場合は false
	Count    int           `json:"count"`     // 画像数
	Playing  bool          `json:"playing"`
	Interval time.Duration `json:"interval"`

	// Current は Index の画像。Index と同じロック内で取得する
	Current imageset.ImageRef `json:"-"`
}

// IntervalMs は再生間隔をミリ秒で返す
func (s Snapshot) IntervalMs() int64 {
	return s.Interval.Milliseconds()
}
