package lco

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/parcelsched/parcel"
)

type CVarTestSuite struct {
	suite.Suite
}

func TestCVarTestSuite(t *testing.T) {
	suite.Run(t, new(CVarTestSuite))
}

func (ts *CVarTestSuite) TestPushWaiterAndPopOneIsLIFO() {
	var c CVar
	ts.True(c.Empty())

	p1 := &parcel.Parcel{Target: 1}
	p2 := &parcel.Parcel{Target: 2}
	c.PushWaiter(p1)
	c.PushWaiter(p2)

	got := c.PopOne()
	ts.Same(p2, got)
	ts.Nil(got.Next)

	got = c.PopOne()
	ts.Same(p1, got)

	ts.True(c.Empty())
	ts.Nil(c.PopOne())
}

func (ts *CVarTestSuite) TestTakeAllDetachesWholeChain() {
	var c CVar
	p1 := &parcel.Parcel{Target: 1}
	p2 := &parcel.Parcel{Target: 2}
	p3 := &parcel.Parcel{Target: 3}
	c.PushWaiter(p1)
	c.PushWaiter(p2)
	c.PushWaiter(p3)

	head := c.TakeAll()
	ts.True(c.Empty())

	var seen []parcel.Address
	for n := head; n != nil; n = n.Next {
		seen = append(seen, n.Target)
	}
	ts.Equal([]parcel.Address{3, 2, 1}, seen)
}

func (ts *CVarTestSuite) TestSetErrorAndReset() {
	var c CVar
	c.SetError(errors.New("boom"))
	ts.Error(c.Error())

	c.PushWaiter(&parcel.Parcel{})
	c.Reset()

	ts.True(c.Empty())
	ts.NoError(c.Error())
}

// TestResetIsIdempotent covers spec's "idempotent reset" property: calling
// Reset on an already-empty CVar is a harmless no-op.
func (ts *CVarTestSuite) TestResetIsIdempotent() {
	var c CVar
	c.Reset()
	c.Reset()
	ts.True(c.Empty())
	ts.NoError(c.Error())
}
