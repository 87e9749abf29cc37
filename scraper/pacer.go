package scraper

import (
	"context"
	"time"
)

// Pacer spaces out sequential upstream requests: a short delay after every
// unit of work and a longer pause every pauseEvery units.
type Pacer struct {
	delay      time.Duration
	pauseEvery int
	pause      time.Duration
	count      int
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewPacer(delay time.Duration, pauseEvery int, pause time.Duration) *Pacer {
	return &Pacer{
		delay:      delay,
		pauseEvery: pauseEvery,
		pause:      pause,
		sleep:      sleepCtx,
	}
}

// Wait blocks for the next gap. It returns early with the context's error.
func (p *Pacer) Wait(ctx context.Context) error {
	p.count++
	d := p.delay
	if p.pauseEvery > 0 && p.count%p.pauseEvery == 0 && p.pause > d {
		d = p.pause
	}
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

// Count is the number of completed units.
func (p *Pacer) Count() int {
	return p.count
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
