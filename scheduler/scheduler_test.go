package scheduler

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/parcelsched/action"
	"github.com/go-foundations/parcelsched/config"
	"github.com/go-foundations/parcelsched/errs"
	"github.com/go-foundations/parcelsched/lco"
	"github.com/go-foundations/parcelsched/parcel"
	"github.com/go-foundations/parcelsched/trace"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func encodeInt64(n int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func testConfig(workers int) config.Config {
	cfg := config.Default()
	cfg.NumWorkers = workers
	return cfg.With()
}

// TestSingleActionProcessExit covers the simplest possible run: one
// action that immediately ends the computation with its input echoed
// back as output.
func (ts *SchedulerTestSuite) TestSingleActionProcessExit() {
	const actMain action.ID = "main"
	actions := action.NewTable()
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		ctx.ProcessExit(args)
		return nil, nil
	}, action.Attrs{})

	sched := New(testConfig(2), actions)
	code, out, err := sched.Start(actMain, []byte("hello"))
	ts.NoError(err)
	ts.Equal(0, code)
	ts.Equal([]byte("hello"), out)
}

// TestContinuationChain exercises spawn + continuation: main spawns a
// child whose continuation targets a second action that ends the run.
func (ts *SchedulerTestSuite) TestContinuationChain() {
	const (
		actMain   action.ID = "main"
		actDouble action.ID = "double"
		actReport action.ID = "report"
	)
	actions := action.NewTable()
	actions.MustRegister(actDouble, func(ctx action.Context, args []byte) ([]byte, error) {
		return encodeInt64(decodeInt64(args) * 2), nil
	}, action.Attrs{})
	actions.MustRegister(actReport, func(ctx action.Context, args []byte) ([]byte, error) {
		ctx.ProcessExit(args)
		return nil, nil
	}, action.Attrs{Internal: true})
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		child := parcel.New(0, actDouble, encodeInt64(21)).WithContinuation(0, actReport)
		return nil, ctx.Spawn(child)
	}, action.Attrs{})

	sched := New(testConfig(2), actions)
	code, out, err := sched.Start(actMain, nil)
	ts.NoError(err)
	ts.Equal(0, code)
	ts.Equal(int64(42), decodeInt64(out))
}

// TestSpawnFanOutAllRun spawns many independent no-op children and
// confirms every one of them actually executed, exercising work-stealing
// across several workers.
func (ts *SchedulerTestSuite) TestSpawnFanOutAllRun() {
	const (
		actNop  action.ID = "nop"
		actMain action.ID = "main"
		n                 = 2000
	)
	var ran atomic.Int64
	actions := action.NewTable()
	actions.MustRegister(actNop, func(ctx action.Context, args []byte) ([]byte, error) {
		ran.Add(1)
		return nil, nil
	}, action.Attrs{})
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		for i := 0; i < n; i++ {
			if err := ctx.Spawn(parcel.New(0, actNop, nil)); err != nil {
				return nil, err
			}
		}
		for ran.Load() < n {
			ctx.Yield()
		}
		ctx.ProcessExit(encodeInt64(ran.Load()))
		return nil, nil
	}, action.Attrs{})

	sched := New(testConfig(4), actions)
	code, out, err := sched.Start(actMain, nil)
	ts.NoError(err)
	ts.Equal(0, code)
	ts.Equal(int64(n), decodeInt64(out))
}

// TestSPMDFanIn runs several simulated localities and confirms the
// process only terminates once every one of them has called ProcessExit,
// adopting locality 0's output.
func (ts *SchedulerTestSuite) TestSPMDFanIn() {
	const actMain action.ID = "main"
	actions := action.NewTable()
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		ctx.ProcessExit(encodeInt64(int64(ctx.WorkerID())))
		return nil, nil
	}, action.Attrs{})

	cfg := testConfig(4)
	cfg.SPMD = true
	cfg.Localities = 3

	sched := New(cfg, actions)
	code, out, err := sched.Start(actMain, nil)
	ts.NoError(err)
	ts.Equal(0, code)
	ts.Len(out, 8)
}

// TestOutputSizeMismatchRejected covers SetOutput's "size must match
// prior allocation" contract.
func (ts *SchedulerTestSuite) TestOutputSizeMismatchRejected() {
	actions := action.NewTable()
	sched := New(testConfig(1), actions)

	ts.NoError(sched.SetOutput([]byte("abcd")))
	err := sched.SetOutput([]byte("ab"))
	ts.Error(err)
	ts.Contains(err.Error(), "size mismatch")
}

// TestDeliverRoutesAffinityToPinnedWorker confirms a parcel carrying a
// soft affinity lands in that worker's mailbox rather than round-robin.
func (ts *SchedulerTestSuite) TestDeliverRoutesAffinityToPinnedWorker() {
	actions := action.NewTable()
	sched := New(testConfig(3), actions)

	p := parcel.New(0, "whatever", nil)
	p.Stack = parcel.NewStack(4096)
	p.Stack.Affinity = 1

	sched.Deliver(p)

	got, ok := sched.Workers()[1].Mailbox().Dequeue()
	ts.True(ok)
	ts.Same(p, got)
}

// TestTraceSinkReceivesTerminationEvents wires a ChannelSink and confirms
// at least one parcel-termination event is recorded.
func (ts *SchedulerTestSuite) TestTraceSinkReceivesTerminationEvents() {
	const actMain action.ID = "main"
	actions := action.NewTable()
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		ctx.ProcessExit(nil)
		return nil, nil
	}, action.Attrs{})

	sink := trace.NewChannelSink(16)
	sched := New(testConfig(1), actions, WithTrace(sink))

	_, _, err := sched.Start(actMain, nil)
	ts.NoError(err)

	select {
	case ev := <-sink.Events():
		ts.Equal(trace.ClassParcel, ev.Class)
		ts.NotEmpty(ev.ID, "a non-noop sink should get a lazily generated trace id")
	default:
		ts.Fail("expected at least one trace event")
	}
}

// TestSpawnRejectedAfterShutdown confirms the documented boundary: once
// the scheduler leaves RUN, a new Spawn is rejected with ErrShutdown and
// never dispatched.
func (ts *SchedulerTestSuite) TestSpawnRejectedAfterShutdown() {
	actions := action.NewTable()
	sched := New(testConfig(1), actions)
	sched.Stop(0)

	err := sched.Spawn(parcel.New(0, "whatever", nil))
	ts.ErrorIs(err, errs.ErrShutdown)
}

// TestDeliverDropsAfterShutdown covers the same boundary for the
// affinity-routed path, which bypasses Spawn's own check.
func (ts *SchedulerTestSuite) TestDeliverDropsAfterShutdown() {
	actions := action.NewTable()
	sched := New(testConfig(2), actions)
	sched.Stop(0)

	p := parcel.New(0, "whatever", nil)
	p.Stack = parcel.NewStack(4096)
	p.Stack.Affinity = 0

	sched.Deliver(p)

	_, ok := sched.Workers()[0].Mailbox().Dequeue()
	ts.False(ok)
}

// TestSignalAllHonorsWaiterAffinity is spec §8 scenario 6: 100 parcels
// each pin themselves to a specific worker before waiting on a shared
// CVar; a single SignalAll must wake every one of them on its own pinned
// worker, not wherever happened to pick it up.
func (ts *SchedulerTestSuite) TestSignalAllHonorsWaiterAffinity() {
	const (
		actMain    action.ID = "main"
		actWaiter  action.ID = "waiter"
		numWorkers           = 4
		numWaiters           = 100
	)

	var (
		mu      sync.Mutex
		cvar    lco.CVar
		joined  int
		results = make([]int, numWaiters)
		wanted  = make([]int, numWaiters)
		done    atomic.Int64
	)

	actions := action.NewTable()
	actions.MustRegister(actWaiter, func(ctx action.Context, args []byte) ([]byte, error) {
		id := int(decodeInt64(args))
		pinned := id % numWorkers
		wanted[id] = pinned
		ctx.SetAffinity(pinned)

		mu.Lock()
		joined++
		if err := ctx.Wait(&mu, &cvar); err != nil {
			mu.Unlock()
			return nil, err
		}
		mu.Unlock()

		results[id] = ctx.WorkerID()
		done.Add(1)
		return nil, nil
	}, action.Attrs{})
	actions.MustRegister(actMain, func(ctx action.Context, args []byte) ([]byte, error) {
		for i := 0; i < numWaiters; i++ {
			if err := ctx.Spawn(parcel.New(0, actWaiter, encodeInt64(int64(i)))); err != nil {
				return nil, err
			}
		}

		for {
			mu.Lock()
			j := joined
			mu.Unlock()
			if j >= numWaiters {
				break
			}
			ctx.Yield()
		}

		ctx.SignalAll(&cvar)

		for done.Load() < numWaiters {
			ctx.Yield()
		}

		ctx.ProcessExit(nil)
		return nil, nil
	}, action.Attrs{})

	sched := New(testConfig(numWorkers), actions)
	code, _, err := sched.Start(actMain, nil)
	ts.NoError(err)
	ts.Equal(0, code)

	for i := 0; i < numWaiters; i++ {
		ts.Equal(wanted[i], results[i], "waiter %d should have resumed on its pinned worker", i)
	}
}
