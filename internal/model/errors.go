package model

import "github.com/rotisserie/eris"

// Sentinel errors shared across the forecasting engine. Wrap them with
// eris.Wrap and test with errors.Is.
var (
	// ErrInsufficientHistory means too few training years remain after
	// exclusion. Recoverable: the unit is skipped.
	ErrInsufficientHistory = eris.New("insufficient history")

	// ErrSchemaMismatch means an input table is missing a required column or
	// carries a value of the wrong type. Fatal.
	ErrSchemaMismatch = eris.New("schema mismatch")

	// ErrDivisionUndefined means a benchmark RMSE of zero made a skill score
	// undefined. Recoverable: the cell is reported as Undefined.
	ErrDivisionUndefined = eris.New("division undefined")

	// ErrLeakageViolation means a trend fit contains its own held-out test
	// year. Fatal: it indicates a correctness bug.
	ErrLeakageViolation = eris.New("leakage violation")
)
