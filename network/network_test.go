package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/parcelsched/parcel"
)

type NetworkTestSuite struct {
	suite.Suite
}

func TestNetworkTestSuite(t *testing.T) {
	suite.Run(t, new(NetworkTestSuite))
}

func (ts *NetworkTestSuite) TestLaunchDelegatesToSpawnFunc() {
	var got *parcel.Parcel
	l := NewLocalLauncher(func(p *parcel.Parcel) error {
		got = p
		return nil
	})

	p := parcel.New(0, "whatever", nil)
	ts.NoError(l.Launch(p))
	ts.Same(p, got)
}

func (ts *NetworkTestSuite) TestLaunchPropagatesSpawnError() {
	want := errors.New("boom")
	l := NewLocalLauncher(func(p *parcel.Parcel) error {
		return want
	})

	err := l.Launch(parcel.New(0, "whatever", nil))
	ts.ErrorIs(err, want)
}

func (ts *NetworkTestSuite) TestLauncherSatisfiesInterface() {
	var _ Launcher = NewLocalLauncher(func(p *parcel.Parcel) error { return nil })
}
