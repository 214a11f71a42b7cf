package config

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (ts *ConfigTestSuite) TestDefaultMatchesGOMAXPROCS() {
	c := Default()
	ts.Equal(runtime.GOMAXPROCS(0), c.NumWorkers)
	ts.Equal(32*1024, c.StackSize)
	ts.Equal(64, c.StackCacheLimit)
	ts.Equal(4, c.WorkFirstThreshold)
	ts.False(c.SPMD)
	ts.NotNil(c.Logger)
}

func (ts *ConfigTestSuite) TestClampsInvalidNumWorkers() {
	c := Config{NumWorkers: 0}.With()
	ts.Equal(1, c.NumWorkers)

	c = Config{NumWorkers: -5}.With()
	ts.Equal(1, c.NumWorkers)
}

func (ts *ConfigTestSuite) TestClampsInvalidStackSize() {
	c := Config{StackSize: -1}.With()
	ts.Equal(32*1024, c.StackSize)
}

func (ts *ConfigTestSuite) TestClampsNegativeStackCacheLimit() {
	c := Config{StackCacheLimit: -1}.With()
	ts.Equal(64, c.StackCacheLimit)
}

func (ts *ConfigTestSuite) TestClampsInvalidWorkFirstThreshold() {
	c := Config{WorkFirstThreshold: 0}.With()
	ts.Equal(4, c.WorkFirstThreshold)
}

func (ts *ConfigTestSuite) TestSPMDWithoutLocalitiesDefaultsToOne() {
	c := Config{SPMD: true}.With()
	ts.Equal(1, c.Localities)
}

func (ts *ConfigTestSuite) TestSPMDRespectsExplicitLocalities() {
	c := Config{SPMD: true, Localities: 8}.With()
	ts.Equal(8, c.Localities)
}
