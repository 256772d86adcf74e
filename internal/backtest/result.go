package backtest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/cropcast/internal/model"
	"github.com/sells-group/cropcast/internal/monitoring"
)

// Failure kinds recorded in the digest.
const (
	KindInsufficientHistory = "insufficient_history"
	KindDivisionUndefined   = "division_undefined"
	KindError               = "error"
)

// Failure is one entry of the failure digest: a skipped unit or an
// undefined skill score.
type Failure struct {
	Commodity model.Commodity `json:"commodity,omitempty"`
	State     string          `json:"state,omitempty"`
	Year      int             `json:"year,omitempty"`
	Kind      string          `json:"kind"`
	Message   string          `json:"message"`

	err error
}

// Unwrap returns the underlying error, if the failure still carries it.
func (f Failure) Unwrap() error { return f.err }

func (f Failure) Error() string {
	if f.State == "" {
		return f.Message
	}
	return fmt.Sprintf("%s/%s %d: %s", f.Commodity, f.State, f.Year, f.Message)
}

func newFailure(u unit, err error) *Failure {
	kind := KindError
	if errors.Is(err, model.ErrInsufficientHistory) {
		kind = KindInsufficientHistory
	}
	return &Failure{
		Commodity: u.key.Commodity,
		State:     u.key.State,
		Year:      u.year,
		Kind:      kind,
		Message:   err.Error(),
		err:       err,
	}
}

// Result is the structured outcome of a backtest run.
type Result struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Partial    bool      `json:"partial"`
	Units      int       `json:"units"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`

	Accuracy   []model.AccuracyMetric `json:"accuracy"`
	Skill      []model.SkillScore     `json:"skill"`
	WorstCases []model.ErrorCase      `json:"worst_cases"`
	Bias       []model.StateBias      `json:"bias"`
	Failures   []Failure              `json:"failures"`
}

// Elapsed returns the wall time of the run.
func (r *Result) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns the view of the result inspected for alerts.
func (r *Result) Summary() monitoring.RunSummary {
	return monitoring.RunSummary{
		RunID:    r.ID.String(),
		Units:    r.Units,
		Skipped:  r.Skipped,
		Accuracy: r.Accuracy,
		Skill:    r.Skill,
		Bias:     r.Bias,
	}
}

// WorstCasesFor returns the worst cases of one commodity and week, largest
// first.
func (r *Result) WorstCasesFor(c model.Commodity, w model.ForecastWeek) []model.ErrorCase {
	var out []model.ErrorCase
	for _, e := range r.WorstCases {
		if e.Commodity == c && e.Week == w {
			out = append(out, e)
		}
	}
	return out
}

func sortFailures(fs []Failure) {
	slices.SortStableFunc(fs, func(a, b Failure) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Commodity, b.Commodity),
			cmp.Compare(a.State, b.State),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Message, b.Message),
		)
	})
}
