package liveengine

import (
	"math/rand"
	"time"
)

// feedBackoffBase, feedBackoffCap and feedQuiesceThreshold are the feed
// reconnect policy: exponential backoff starting at 1s, capped at 60s,
// with +/-20% jitter, quiescing the pair after 5 consecutive failures.
const (
	feedBackoffBase      = time.Second
	feedBackoffCap       = 60 * time.Second
	feedBackoffJitter    = 0.2
	feedQuiesceThreshold = 5
)

// exchangeRetryMax and exchangeRetryBase bound the retry policy for
// retriable exchange errors: 3 attempts, short exponential backoff
// capped well below the feed policy above.
const (
	exchangeRetryMax  = 3
	exchangeRetryBase = 250 * time.Millisecond
	exchangeRetryCap  = 4 * time.Second
)

func jitter(d time.Duration, rng *rand.Rand) time.Duration {
	factor := 1 + (rng.Float64()*2-1)*feedBackoffJitter
	return time.Duration(float64(d) * factor)
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}
