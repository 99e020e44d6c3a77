package presenter

import (
	"context"
	"errors"
	"sync"

	"komaokuri/internal/imageset"
	"komaokuri/internal/playback"
)

// FullscreenClass は全画面表示中に付与する表示クラス
const FullscreenClass = "fullscreen"

// ErrNoImage は表示する画像が無い場合のエラー
var ErrNoImage = errors.New("表示する画像がありません")

// Source は表示する状態の提供元
type Source interface {
	State() playback.Snapshot
	Current() (imageset.ImageRef, bool)
	Subscribe() (<-chan playback.Snapshot, func())
}

// Progress はプログレスバーの値
type Progress struct {
	Value int `json:"value"` // 現在位置 (1始まり)
	Max   int `json:"max"`   // 画像数
}

// View は表示面に渡すビュー
type View struct {
	State      playback.State `json:"state"`
	Empty      bool           `json:"empty"` // ドロップゾーンを表示する
	Index      int            `json:"index"`
	Count      int            `json:"count"`
	Playing    bool           `json:"playing"`
	Progress   Progress       `json:"progress"`
	IntervalMs int64          `json:"interval_ms"`
	SpeedValue int            `json:"speed_value"` // スライダーの値 (2000 - interval)
	Fullscreen bool           `json:"fullscreen"`
	Class      string         `json:"class"`
	ImageID    string         `json:"image_id,omitempty"`
	ImageName  string         `json:"image_name,omitempty"`
}

// Presenter は再生状態と全画面状態から表示用のビューを作る
type Presenter struct {
	source Source

	mu          sync.Mutex
	fullscreen  bool
	subscribers map[chan View]struct{}
}

// New は新しいPresenterを作成する
func New(source Source) *Presenter {
	return &Presenter{
		source:      source,
		subscribers: make(map[chan View]struct{}),
	}
}

// Run はコントローラの状態変化をビューに変換して購読者へ配信する
// ctx がキャンセルされるまでブロックする
func (p *Presenter) Run(ctx context.Context) {
	updates, cancel := p.source.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			p.mu.Lock()
			if snap.Count == 0 {
				// 画像が無くなったら全画面も終了する
				p.fullscreen = false
			}
			view := p.buildLocked(snap)
			p.publishLocked(view)
			p.mu.Unlock()
		}
	}
}

// View は現在のビューを返す
func (p *Presenter) View() View {
	snap := p.source.State()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buildLocked(snap)
}

// RequestFullscreen はユーザーの全画面要求を反映する
func (p *Presenter) RequestFullscreen() View {
	return p.SetFullscreen(true)
}

// ExitFullscreen はプラットフォームからの全画面終了通知を反映する
func (p *Presenter) ExitFullscreen() View {
	return p.SetFullscreen(false)
}

// SetFullscreen は全画面状態を更新する。画像が無い場合は全画面にしない
func (p *Presenter) SetFullscreen(active bool) View {
	snap := p.source.State()

	p.mu.Lock()
	defer p.mu.Unlock()

	if active && snap.Count == 0 {
		active = false
	}
	changed := p.fullscreen != active
	p.fullscreen = active

	view := p.buildLocked(snap)
	if changed {
		p.publishLocked(view)
	}
	return view
}

// Subscribe はビューの購読を開始する
func (p *Presenter) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	snap := p.source.State()

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	ch <- p.buildLocked(snap)
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
		})
	}
}

func (p *Presenter) buildLocked(snap playback.Snapshot) View {
	view := View{
		State:      snap.State,
		Empty:      snap.Count == 0,
		Count:      snap.Count,
		Playing:    snap.Playing,
		IntervalMs: snap.IntervalMs(),
		SpeedValue: playback.SliderFromInterval(snap.Interval),
		Fullscreen: p.fullscreen,
		Progress:   Progress{Max: snap.Count},
	}
	if p.fullscreen {
		view.Class = FullscreenClass
	}
	if snap.HasIndex {
		view.Index = snap.Index
		view.Progress.Value = snap.Index + 1
		// 位置と画像は同じスナップショットから取る
		view.ImageID = snap.Current.ID
		view.ImageName = snap.Current.Name
	}
	return view
}

func (p *Presenter) publishLocked(view View) {
	for ch := range p.subscribers {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}
