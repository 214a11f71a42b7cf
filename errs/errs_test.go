package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrsTestSuite struct {
	suite.Suite
}

func TestErrsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrsTestSuite))
}

func (ts *ErrsTestSuite) TestStatusOfNilIsSuccess() {
	ts.Equal(Success, StatusOf(nil))
}

func (ts *ErrsTestSuite) TestStatusOfResendSentinel() {
	ts.Equal(Resend, StatusOf(ErrResend))
	ts.Equal(Resend, StatusOf(fmt.Errorf("wrapped: %w", ErrResend)))
}

func (ts *ErrsTestSuite) TestStatusOfLCOFailure() {
	ts.Equal(LCOError, StatusOf(&LCOFailure{Err: errors.New("boom")}))
}

func (ts *ErrsTestSuite) TestStatusOfGenericError() {
	ts.Equal(Error, StatusOf(errors.New("boom")))
}

func (ts *ErrsTestSuite) TestFatalUnwraps() {
	cause := errors.New("root cause")
	fatal := NewFatal("spawn", cause)

	ts.True(IsFatal(fatal))
	ts.ErrorIs(fatal, cause)
	ts.Contains(fatal.Error(), "spawn")
	ts.Contains(fatal.Error(), "root cause")
}

func (ts *ErrsTestSuite) TestIsFatalFalseForOrdinaryError() {
	ts.False(IsFatal(errors.New("plain")))
}

func (ts *ErrsTestSuite) TestStatusString() {
	ts.Equal("success", Success.String())
	ts.Equal("resend", Resend.String())
	ts.Equal("error", Error.String())
	ts.Equal("lco_error", LCOError.String())
}
