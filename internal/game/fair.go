package game

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strconv"
)

const (
	MIN_MULTIPLIER         = 1.00
	DEFAULT_MAX_MULTIPLIER = 120
	GROWTH_RATE            = 0.07
)

// CrashPoint derives the round-ending multiplier from the seed and the
// round sequence number. The same (seed, sequence) pair always yields the
// same result, so any round can be re-derived and verified after the fact.
//
// The first 32 bits of sha256(seed + sequence) are reduced modulo
// maxMultiplier*100 and scaled to two decimal places. The modulo biases
// slightly toward lower values; that is an accepted property of the game.
func CrashPoint(seed string, sequence int, maxMultiplier int) float64 {
	sum := sha256.Sum256([]byte(seed + strconv.Itoa(sequence)))
	d := binary.BigEndian.Uint32(sum[:4])
	return round2(1 + float64(d%uint32(maxMultiplier*100))/100)
}

// MultiplierAt computes the displayed multiplier after elapsedSeconds of
// play. Strictly increasing; callers must never pass a decreasing elapsed
// time for the same round.
func MultiplierAt(elapsedSeconds float64) float64 {
	return round2(1 + math.Exp(GROWTH_RATE*elapsedSeconds)/100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
