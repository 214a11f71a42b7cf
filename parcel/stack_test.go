package parcel

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StackTestSuite struct {
	suite.Suite
}

func TestStackTestSuite(t *testing.T) {
	suite.Run(t, new(StackTestSuite))
}

func (ts *StackTestSuite) TestNewStackDefaultsToNoAffinity() {
	s := NewStack(4096)
	ts.Equal(NoAffinity, s.Affinity)
	ts.False(s.Started())
}

func (ts *StackTestSuite) TestStartReportsTerminated() {
	s := NewStack(4096)
	s.Start(func() {
		s.Report(Outcome{Kind: OutcomeTerminated, Result: []byte("done")})
	})

	outcome := s.WaitReport()
	ts.Equal(OutcomeTerminated, outcome.Kind)
	ts.Equal([]byte("done"), outcome.Result)
	ts.True(s.Started())
}

// TestParkThenResume exercises the full suspend/resume round trip a
// voluntary wait or yield goes through: one Report before parking, a
// second after being resumed.
func (ts *StackTestSuite) TestParkThenResume() {
	s := NewStack(4096)
	resumed := make(chan struct{})

	s.Start(func() {
		s.Report(Outcome{Kind: OutcomeParked})
		s.Park()
		close(resumed)
		s.Report(Outcome{Kind: OutcomeTerminated})
	})

	first := s.WaitReport()
	ts.Equal(OutcomeParked, first.Kind)

	select {
	case <-resumed:
		ts.Fail("goroutine resumed before Resume was called")
	default:
	}

	s.Resume()
	<-resumed

	second := s.WaitReport()
	ts.Equal(OutcomeTerminated, second.Kind)
}

func (ts *StackTestSuite) TestReinitClearsHeaderWithoutReallocatingChannels() {
	s := NewStack(1024)

	done := make(chan struct{})
	s.Start(func() {
		s.Report(Outcome{Kind: OutcomeTerminated})
		close(done)
	})
	s.WaitReport()
	<-done

	s.Affinity = 3
	s.TLSID = 99
	s.LCODepth = 2
	s.DriverCtx = "driver-state"
	s.Owner = &Parcel{}

	s.Reinit()

	ts.Equal(NoAffinity, s.Affinity)
	ts.Equal(uint64(0), s.TLSID)
	ts.Equal(0, s.LCODepth)
	ts.Nil(s.DriverCtx)
	ts.Nil(s.Owner)
	ts.False(s.Started())

	// The same Stack header, with its original channels, can be launched
	// again after Reinit — this is the freelist reuse path.
	done2 := make(chan struct{})
	s.Start(func() {
		s.Report(Outcome{Kind: OutcomeTerminated})
		close(done2)
	})
	outcome := s.WaitReport()
	ts.Equal(OutcomeTerminated, outcome.Kind)
	<-done2
}
