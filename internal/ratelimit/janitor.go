// Package ratelimit holds the process-local request state: a per-key sliding
// window limiter and a short-lived response cache. Both are advisory and
// lose their contents on restart.
package ratelimit

import (
	"sync"
	"time"
)

// janitor runs sweep on a ticker between Start and Stop.
type janitor struct {
	interval  time.Duration
	sweep     func()
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newJanitor(interval time.Duration, sweep func()) *janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &janitor{interval: interval, sweep: sweep, done: make(chan struct{})}
}

func (j *janitor) start() {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			for {
				select {
				case <-j.done:
					return
				case <-ticker.C:
					j.sweep()
				}
			}
		}()
	})
}

func (j *janitor) stop() {
	j.stopOnce.Do(func() { close(j.done) })
	j.wg.Wait()
}
