// Package scheduler ties the whole runtime together (spec §4.A): the
// RUN/STOP/SHUTDOWN state machine, the global yielded queue, the credit
// detector, and the single output slot a computation's final exit writes
// into. It is the only package that constructs worker.Worker values, so
// it's also the only place the worker.Scheduler interface gets satisfied.
//
// Grounded on the teacher's Pool in workerpool.go: a fixed set of workers
// started once, a shared shutdown signal, a blocking call that returns
// once everything has drained. Generalized here to a dispatch loop that
// suspends and resumes individual lightweight threads instead of running
// one Processor per job to completion.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-foundations/parcelsched/action"
	"github.com/go-foundations/parcelsched/config"
	"github.com/go-foundations/parcelsched/errs"
	"github.com/go-foundations/parcelsched/gas"
	"github.com/go-foundations/parcelsched/internal/obslog"
	"github.com/go-foundations/parcelsched/network"
	"github.com/go-foundations/parcelsched/parcel"
	"github.com/go-foundations/parcelsched/queue"
	"github.com/go-foundations/parcelsched/trace"
	"github.com/go-foundations/parcelsched/worker"
)

// Run states, numerically aligned with worker.StateRun/StateStop/
// StateShutdown so Worker.schedule's atomic load compares directly.
const (
	StateRun int32 = iota
	StateStop
	StateShutdown
)

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLauncher overrides the default loopback network.Launcher.
func WithLauncher(l network.Launcher) Option { return func(s *Scheduler) { s.launcher = l } }

// WithTrace installs a trace.Sink other than the default no-op.
func WithTrace(t trace.Sink) Option { return func(s *Scheduler) { s.tracer = t } }

// WithGAS installs a gas.Heap other than a fresh empty one.
func WithGAS(h *gas.Heap) Option { return func(s *Scheduler) { s.gasHeap = h } }

// Scheduler is the process-wide runtime: every Worker, the global yielded
// queue, the credit detector, and the RUN/STOP/SHUTDOWN state (spec
// §4.A).
type Scheduler struct {
	cfg     config.Config
	actions *action.Table
	gasHeap *gas.Heap
	tracer  trace.Sink

	launcher network.Launcher
	workers  []*worker.Worker
	yielded  *queue.TwoLock[*parcel.Parcel]
	detector *parcel.Detector

	state    atomic.Int32
	exitCode atomic.Int32
	nextTLS  atomic.Uint64
	spawnRR  atomic.Uint64

	output struct {
		mu        sync.Mutex
		buf       []byte
		allocated bool
	}

	stoppedCh chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	spmd *spmdBarrier
	log  obslog.Logger
}

// New builds a Scheduler and its workers. Nothing runs until Start.
func New(cfg config.Config, actions *action.Table, opts ...Option) *Scheduler {
	cfg = cfg.With()
	s := &Scheduler{
		cfg:       cfg,
		actions:   actions,
		gasHeap:   gas.NewHeap(),
		tracer:    trace.NoopSink{},
		yielded:   queue.NewTwoLock[*parcel.Parcel](),
		detector:  parcel.NewDetector(),
		stoppedCh: make(chan struct{}),
		log:       cfg.Logger,
	}
	s.launcher = network.NewLocalLauncher(s.Spawn)

	for _, o := range opts {
		o(s)
	}

	s.workers = make([]*worker.Worker, cfg.NumWorkers)
	for i := range s.workers {
		s.workers[i] = worker.New(i, s, s.log)
	}

	if cfg.SPMD {
		s.spmd = newSPMDBarrier(s, cfg.Localities)
	}

	return s
}

// --- worker.Scheduler interface ---

func (s *Scheduler) Actions() *action.Table                          { return s.actions }
func (s *Scheduler) GAS() *gas.Heap                                  { return s.gasHeap }
func (s *Scheduler) Trace() trace.Sink                               { return s.tracer }
func (s *Scheduler) Workers() []*worker.Worker                       { return s.workers }
func (s *Scheduler) YieldedQueue() *queue.TwoLock[*parcel.Parcel]    { return s.yielded }
func (s *Scheduler) Detector() *parcel.Detector                      { return s.detector }
func (s *Scheduler) State() int32                                    { return s.state.Load() }
func (s *Scheduler) StackSize() int                                  { return s.cfg.StackSize }
func (s *Scheduler) StackCacheLimit() int                             { return s.cfg.StackCacheLimit }
func (s *Scheduler) WorkFirstThreshold() int                         { return s.cfg.WorkFirstThreshold }
func (s *Scheduler) NextTLSID() uint64                               { return s.nextTLS.Add(1) }

// Deliver routes a signaled/resumed parcel: to its pinned worker's
// mailbox if it has a soft affinity, otherwise through the normal spawn
// path (spec §4.B "soft affinity"). Dropped silently once the scheduler
// has left RUN, same boundary Spawn enforces.
func (s *Scheduler) Deliver(p *parcel.Parcel) {
	if s.State() != StateRun {
		return
	}
	if p.Stack != nil && p.Stack.Affinity != parcel.NoAffinity {
		idx := p.Stack.Affinity % len(s.workers)
		if idx < 0 {
			idx += len(s.workers)
		}
		s.workers[idx].Mailbox().Enqueue(p)
		return
	}
	_ = s.Spawn(p)
}

// Relaunch re-enters the network seam for a parcel whose thread asked to
// be resent (spec §4.B Resend).
func (s *Scheduler) Relaunch(p *parcel.Parcel) { _ = s.launcher.Launch(p) }

// LaunchLocal sends a freshly built continuation parcel through the
// network seam, same as any other spawn (spec §4.B "launch the
// continuation").
func (s *Scheduler) LaunchLocal(p *parcel.Parcel) { _ = s.launcher.Launch(p) }

// ProcessExit is the worker-facing half of spec §4.A's exit: non-SPMD
// runs stop immediately; SPMD runs report into the fan-in barrier.
func (s *Scheduler) ProcessExit(pid int, output []byte) {
	if s.spmd != nil {
		s.spmd.report(pid, output)
		return
	}
	_ = s.SetOutput(output)
	s.Stop(0)
}

// --- external API ---

// Spawn is the producer-facing entry point (spec §4.A): round-robins
// across workers, honoring a parcel's soft affinity if it already has
// one. Unlike ThreadContext.Spawn it never work-first-transfers, since
// there is no running thread to redirect from. Rejects with ErrShutdown
// once the scheduler has left RUN — a parcel spawned after shutdown is
// accepted syntactically but never dispatched, per spec §4.A.
func (s *Scheduler) Spawn(p *parcel.Parcel) error {
	if s.State() != StateRun {
		return errs.ErrShutdown
	}
	idx := s.pickWorker(p)
	s.workers[idx].Mailbox().Enqueue(p)
	return nil
}

func (s *Scheduler) pickWorker(p *parcel.Parcel) int {
	n := len(s.workers)
	if p.Stack != nil && p.Stack.Affinity != parcel.NoAffinity {
		idx := p.Stack.Affinity % n
		if idx < 0 {
			idx += n
		}
		return idx
	}
	return int(s.spawnRR.Add(1) % uint64(n))
}

// Start launches every worker goroutine, publishes the startup parcel
// (once per simulated locality in SPMD mode, spec §4.A), and blocks until
// Stop is called. Returns the exit code and whatever output SetOutput /
// Exit last recorded.
func (s *Scheduler) Start(startAction action.ID, args []byte) (int, []byte, error) {
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *worker.Worker) {
			defer s.wg.Done()
			w.Run()
		}(w)
	}

	if s.cfg.SPMD {
		shares := parcel.TotalCredit.Split(s.cfg.Localities)
		for i := 0; i < s.cfg.Localities; i++ {
			p := parcel.New(parcel.Address(0), startAction, args)
			p.Pid = i
			p.Credit = shares[i]
			if err := s.Spawn(p); err != nil {
				return 0, nil, err
			}
		}
	} else {
		p := parcel.New(parcel.Address(0), startAction, args)
		p.Credit = parcel.TotalCredit
		if err := s.Spawn(p); err != nil {
			return 0, nil, err
		}
	}

	<-s.stoppedCh
	s.wg.Wait()
	return int(s.exitCode.Load()), s.snapshotOutput(), nil
}

// Stop transitions the scheduler to SHUTDOWN with the given exit code.
// Each worker's own deque still drains (already-dispatched threads run
// to completion, but the continuation parcels they launch are rejected
// by Spawn and never run) and no worker picks up mail, a new steal or a
// yielded-queue item once it observes the new state; once its own deque
// is empty it returns from Run.
func (s *Scheduler) Stop(code int) {
	s.exitCode.Store(int32(code))
	s.stopOnce.Do(func() {
		s.state.Store(StateShutdown)
		close(s.stoppedCh)
	})
}

// SetOutput records the final payload a computation produced. The first
// call establishes the size; later calls must match it (spec §6 "exit:
// copy the final payload into the scheduler's output slot; size must
// match prior allocation").
func (s *Scheduler) SetOutput(buf []byte) error {
	s.output.mu.Lock()
	defer s.output.mu.Unlock()
	if s.output.allocated && len(buf) != len(s.output.buf) {
		return fmt.Errorf("scheduler: output size mismatch: want %d got %d", len(s.output.buf), len(buf))
	}
	s.output.buf = append([]byte(nil), buf...)
	s.output.allocated = true
	return nil
}

func (s *Scheduler) snapshotOutput() []byte {
	s.output.mu.Lock()
	defer s.output.mu.Unlock()
	return append([]byte(nil), s.output.buf...)
}

// Exit is exposed for application code calling from outside any running
// thread (tests, or a top-level driver that wants to force termination).
// From inside a thread, use ThreadContext.ProcessExit instead.
func (s *Scheduler) Exit(output []byte) {
	s.ProcessExit(0, output)
}
