package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// spmdBarrier implements spec §4.A's SPMD exit: N simulated localities
// each call exit independently; the computation as a whole only
// terminates once every one of them has reported, at which point
// locality 0's output is adopted as the process's final output (the same
// "rank 0 speaks for the group" convention the original SPMD model
// uses for its barrier).
//
// golang.org/x/sync/errgroup gives this a straightforward fan-in: one
// goroutine per locality waiting on its own report channel, joined by a
// single Wait.
type spmdBarrier struct {
	sched    *Scheduler
	reportCh []chan []byte
}

func newSPMDBarrier(sched *Scheduler, localities int) *spmdBarrier {
	b := &spmdBarrier{
		sched:    sched,
		reportCh: make([]chan []byte, localities),
	}
	for i := range b.reportCh {
		b.reportCh[i] = make(chan []byte, 1)
	}
	go b.run()
	return b
}

func (b *spmdBarrier) run() {
	results := make([][]byte, len(b.reportCh))
	g, _ := errgroup.WithContext(context.Background())
	for i, ch := range b.reportCh {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = <-ch
			return nil
		})
	}
	_ = g.Wait()

	out := []byte(nil)
	if len(results) > 0 {
		out = results[0]
	}
	_ = b.sched.SetOutput(out)
	b.sched.Stop(0)
}

// report delivers one locality's exit output into the barrier. Extra
// reports past the first for a given pid (shouldn't happen under normal
// use) are dropped rather than blocking the calling goroutine forever.
func (b *spmdBarrier) report(pid int, output []byte) {
	if pid < 0 || pid >= len(b.reportCh) {
		return
	}
	select {
	case b.reportCh[pid] <- output:
	default:
	}
}
