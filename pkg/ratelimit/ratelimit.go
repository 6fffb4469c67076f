/*
 * Copyright 2026 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ratelimit damps abusive poll rates with per-device
// calendar-minute counters held in process memory. Counters are
// instance-local: under a multi-instance deployment the ceiling is
// approximate, which is acceptable for abuse damping.
package ratelimit

import (
	"sync"
	"time"
)

var nowFunc = time.Now

type window struct {
	minute int64
	count  int
}

// PollLimiter counts polls per device key per calendar minute.
type PollLimiter struct {
	maxPerMinute int

	mu          sync.Mutex
	state       map[string]window
	sweepMinute int64
}

// NewPollLimiter creates a limiter allowing maxPerMinute calls per key
// within one calendar minute.
func NewPollLimiter(maxPerMinute int) *PollLimiter {
	return &PollLimiter{
		maxPerMinute: maxPerMinute,
		state:        make(map[string]window),
	}
}

// Allow records one call for key and reports whether it is within the
// per-minute ceiling. The counter update and check happen under a single
// lock so concurrent retries from the same device cannot lose increments.
// The first call of each new minute also sweeps counters left over from past
// minutes, keeping the map bounded by the devices active in the current
// minute without a background goroutine.
func (l *PollLimiter) Allow(key string) bool {
	currentMinute := nowFunc().Unix() / 60

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sweepMinute != currentMinute {
		l.pruneStaleLocked(currentMinute)
		l.sweepMinute = currentMinute
	}

	w, ok := l.state[key]
	if !ok || w.minute != currentMinute {
		w = window{minute: currentMinute}
	}

	w.count++
	l.state[key] = w

	return w.count <= l.maxPerMinute
}

func (l *PollLimiter) pruneStaleLocked(currentMinute int64) {
	for key, w := range l.state {
		if w.minute != currentMinute {
			delete(l.state, key)
		}
	}
}
