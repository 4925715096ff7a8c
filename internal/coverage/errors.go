package coverage

import (
	"errors"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

// Structural errors. They mean the analysis could not be performed; a
// coverage shortfall is never reported through an error.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidInputOrder = errors.New("time points not strictly increasing")
)

// Per-item errors, absorbed into report counters.
var (
	ErrMalformedSatellite = model.ErrMalformedSatellite
	ErrOracleUnavailable  = core.ErrOracleUnavailable
)
