package playback

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"komaokuri/internal/imageset"
)

// Controller は画像集合に対する再生カーソルを管理する
type Controller struct {
	images   imageset.Set  // 現在の画像集合
	index    int           // 現在位置
	playing  bool          // 再生中かどうか
	interval time.Duration // 再生間隔
	clock    clockwork.Clock

	// 制御用
	generation uint64        // ティッカーの世代。停止・再起動のたびに進める
	stopCh     chan struct{} // 現在のティッカーの停止通知
	wg         sync.WaitGroup
	mu         sync.Mutex

	subscribers map[chan Snapshot]struct{}
}

// NewController は新しいControllerを作成する
func NewController(interval time.Duration) *Controller {
	return NewControllerWithClock(interval, clockwork.NewRealClock())
}

// NewControllerWithClock は指定したClockを使うControllerを作成する
func NewControllerWithClock(interval time.Duration, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		interval:    ClampInterval(interval),
		clock:       clock,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Load は画像集合を置き換え、先頭で一時停止状態にする
func (c *Controller) Load(images imageset.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTickerLocked()
	c.images = images
	c.index = 0
	c.playing = false
	c.notifyLocked()
}

// Clear は画像集合を空にして停止する
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTickerLocked()
	c.images = imageset.Set{}
	c.index = 0
	c.playing = false
	c.notifyLocked()
}

// Next は次の画像へ進む。最後の次は先頭
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.advanceLocked(1) {
		c.notifyLocked()
	}
}

// Previous は前の画像へ戻る。先頭の前は最後
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.advanceLocked(-1) {
		c.notifyLocked()
	}
}

// Seek は全体に対する割合 (0.0-1.0) の位置へ移動する
func (c *Controller) Seek(fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.images.Len()
	if n == 0 {
		return
	}

	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	index := int(math.Floor(fraction * float64(n)))
	if index > n-1 {
		index = n - 1
	}
	c.index = index
	c.notifyLocked()
}

// Play は自動送りを開始する。画像が無い場合は何もしない
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.images.IsEmpty() || c.playing {
		return
	}

	c.playing = true
	c.startTickerLocked()
	c.notifyLocked()
}

// Pause は自動送りを停止する
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	c.stopTickerLocked()
	c.playing = false
	c.notifyLocked()
}

// SetSpeed は再生間隔を変更する。再生中ならティッカーを再起動する
func (c *Controller) SetSpeed(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.interval = ClampInterval(interval)
	if c.playing {
		// 端数の持ち越しはしない
		c.stopTickerLocked()
		c.startTickerLocked()
	}
	c.notifyLocked()
}

// State は現在の状態を返す
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// Images は現在の画像集合を返す
func (c *Controller) Images() imageset.Set {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.images
}

// Current は現在位置の画像を返す
func (c *Controller) Current() (imageset.ImageRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.images.IsEmpty() {
		return imageset.ImageRef{}, false
	}
	return c.images.At(c.index)
}

// Subscribe は状態変化の購読を開始する
// 受信側が遅れた場合は古い状態を捨てて最新の状態だけを残す
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close は自動送りを停止し、ティッカーのゴルーチンの終了を待つ
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTickerLocked()
	c.playing = false
	c.notifyLocked()
	c.mu.Unlock()

	c.wg.Wait()
}

// advanceLocked はカーソルを step だけ循環移動する
func (c *Controller) advanceLocked(step int) bool {
	n := c.images.Len()
	if n == 0 {
		return false
	}
	c.index = ((c.index%n)+step+n) % n
	return true
}

// startTickerLocked は新しい世代のティッカーを起動する
func (c *Controller) startTickerLocked() {
	c.generation++
	c.stopCh = make(chan struct{})

	ticker := c.clock.NewTicker(c.interval)
	c.wg.Add(1)
	go c.run(ticker, c.stopCh, c.generation)
}

// stopTickerLocked は現在のティッカーを停止する
// ゴルーチンの終了は待たない（tick 側でロックを取るため）
func (c *Controller) stopTickerLocked() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	c.generation++
}

// run はティッカーごとに1つ起動され、停止されるまで自動送りを行う
func (c *Controller) run(ticker clockwork.Ticker, stopCh <-chan struct{}, generation uint64) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			c.tick(generation)
		}
	}
}

// tick は自動送りを1回行う。画像数はその都度読み直す
func (c *Controller) tick(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || !c.playing {
		return // 古い世代のtick
	}
	if c.images.IsEmpty() {
		c.playing = false
		c.stopTickerLocked()
		c.notifyLocked()
		log.Printf("画像が無いため自動送りを停止しました")
		return
	}

	c.advanceLocked(1)
	c.notifyLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	n := c.images.Len()
	snap := Snapshot{
		State:    StateEmpty,
		Count:    n,
		Playing:  c.playing,
		Interval: c.interval,
	}
	if n > 0 {
		snap.HasIndex = true
		snap.Index = c.index
		snap.Current, _ = c.images.At(c.index)
		snap.State = StatePaused
		if c.playing {
			snap.State = StatePlaying
		}
	}
	return snap
}

// notifyLocked は購読者に最新状態を送る
func (c *Controller) notifyLocked() {
	if len(c.subscribers) == 0 {
		return
	}

	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// 古い状態を捨てて入れ直す
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
