package domain

import "math"

// Scoring constants: a correct answer is worth a flat base plus a speed
// bonus that decays linearly over the answering window.
const (
	BasePoints    = 700
	SpeedBonusMax = 300
)

// Points maps (correctness, elapsed time, question duration) to an award.
// Incorrect answers score 0 regardless of timing. Elapsed time is clamped to
// [0, durationSec*1000], so an answer landing exactly at the deadline still
// earns the base and an instant answer earns base + full bonus.
func Points(correct bool, elapsedMs int64, durationSec int) int {
	if !correct {
		return 0
	}
	windowMs := int64(durationSec) * 1000
	if windowMs <= 0 {
		return BasePoints
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > windowMs {
		elapsedMs = windowMs
	}
	speed := 1 - float64(elapsedMs)/float64(windowMs)
	return BasePoints + int(math.Round(SpeedBonusMax*speed))
}
