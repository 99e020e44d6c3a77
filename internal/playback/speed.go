package playback

import (
	"time"
)

// 速度スライダーの値域
const (
	SliderMin = 100
	SliderMax = 2000
)

// IntervalFromSlider はスライダーの値を再生間隔に変換する
// 値が大きいほど速い（interval = 2000 - value）
func IntervalFromSlider(value int) time.Duration {
	if value < SliderMin {
		value = SliderMin
	}
	if value > SliderMax {
		value = SliderMax
	}
	return ClampInterval(time.Duration(SliderMax-value) * time.Millisecond)
}

// SliderFromInterval は再生間隔をスライダー表示値に変換する
func SliderFromInterval(interval time.Duration) int {
	return SliderMax - int(interval.Milliseconds())
}

// ClampInterval は再生間隔を有効範囲に収める
func ClampInterval(interval time.Duration) time.Duration {
	if interval < MinInterval {
		return MinInterval
	}
	if interval > MaxInterval {
		return MaxInterval
	}
	return interval
}
