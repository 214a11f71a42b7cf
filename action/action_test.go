package action

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ActionTableTestSuite struct {
	suite.Suite
}

func TestActionTableTestSuite(t *testing.T) {
	suite.Run(t, new(ActionTableTestSuite))
}

func noop(ctx Context, args []byte) ([]byte, error) { return args, nil }

func (ts *ActionTableTestSuite) TestRegisterAndLookup() {
	table := NewTable()
	err := table.Register("echo", noop, Attrs{Pinned: true})
	ts.NoError(err)

	fn, attrs, ok := table.Lookup("echo")
	ts.True(ok)
	ts.NotNil(fn)
	ts.True(attrs.Pinned)
}

func (ts *ActionTableTestSuite) TestLookupUnknown() {
	table := NewTable()
	_, _, ok := table.Lookup("missing")
	ts.False(ok)
}

func (ts *ActionTableTestSuite) TestDoubleRegisterFails() {
	table := NewTable()
	ts.NoError(table.Register("dup", noop, Attrs{}))

	err := table.Register("dup", noop, Attrs{})
	ts.Error(err)
	ts.Contains(err.Error(), "already registered")
}

func (ts *ActionTableTestSuite) TestMustRegisterPanicsOnDuplicate() {
	table := NewTable()
	table.MustRegister("dup", noop, Attrs{})

	ts.Panics(func() {
		table.MustRegister("dup", noop, Attrs{})
	})
}
