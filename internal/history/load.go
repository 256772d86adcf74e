package history

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/fetcher"
	"github.com/sells-group/cropcast/internal/model"
)

// Source produces the historical tables. Loading is the only I/O of a run
// and happens once, before any unit executes.
type Source interface {
	Load(ctx context.Context) (*Tables, error)
}

// LoadCSV parses yields and (optionally nil) conditions CSV streams.
func LoadCSV(ctx context.Context, yields, conditions io.Reader) (*Tables, error) {
	yt, err := readCSV(ctx, "yields", yields)
	if err != nil {
		return nil, err
	}
	var ct table
	if conditions != nil {
		if ct, err = readCSV(ctx, "conditions", conditions); err != nil {
			return nil, err
		}
	}
	return build(yt, ct)
}

// LoadXLSX parses the first sheet of each workbook. conditionsPath may be
// empty.
func LoadXLSX(yieldsPath, conditionsPath string) (*Tables, error) {
	yt, err := readXLSX("yields", yieldsPath)
	if err != nil {
		return nil, err
	}
	var ct table
	if conditionsPath != "" {
		if ct, err = readXLSX("conditions", conditionsPath); err != nil {
			return nil, err
		}
	}
	return build(yt, ct)
}

func build(yt, ct table) (*Tables, error) {
	yields, err := decodeYields(yt)
	if err != nil {
		return nil, err
	}
	var conds []model.ConditionSnapshot
	if ct.header != nil {
		if conds, err = decodeConditions(ct); err != nil {
			return nil, err
		}
	}
	return NewTables(yields, conds)
}

func readCSV(ctx context.Context, name string, r io.Reader) (table, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	t := table{name: name}
	for rec := range rowCh {
		if t.header == nil {
			t.header = rec
			continue
		}
		t.rows = append(t.rows, rec)
	}
	if err := <-errCh; err != nil {
		return table{}, eris.Wrapf(err, "history: read %s csv", name)
	}
	return t, nil
}

func readXLSX(name, path string) (table, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return table{}, eris.Wrapf(err, "history: read %s xlsx", name)
	}
	t := table{name: name}
	if len(rows) > 0 {
		t.header, t.rows = rows[0], rows[1:]
	}
	return t, nil
}

// FileSource loads the tables from URIs resolved by a Fetcher. Files ending
// in .xlsx are read as workbooks, anything else as CSV.
type FileSource struct {
	Fetcher       fetcher.Fetcher
	YieldsURI     string
	ConditionsURI string // optional
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (*Tables, error) {
	log := zap.L().With(zap.String("component", "history"))

	var (
		t   *Tables
		err error
	)
	if isXLSX(s.YieldsURI) || isXLSX(s.ConditionsURI) {
		t, err = s.loadXLSX(ctx)
	} else {
		t, err = s.loadCSV(ctx)
	}
	if err != nil {
		return nil, err
	}

	nYields, nConds := t.Counts()
	log.Info("loaded history",
		zap.String("yields", s.YieldsURI),
		zap.String("conditions", s.ConditionsURI),
		zap.Int("yield_rows", nYields),
		zap.Int("condition_rows", nConds),
		zap.Int("series", len(t.Keys())),
	)
	return t, nil
}

func (s *FileSource) loadCSV(ctx context.Context) (*Tables, error) {
	yields, err := s.Fetcher.Download(ctx, s.YieldsURI)
	if err != nil {
		return nil, eris.Wrap(err, "history: open yields")
	}
	defer yields.Close() //nolint:errcheck

	var conds io.Reader
	if s.ConditionsURI != "" {
		rc, err := s.Fetcher.Download(ctx, s.ConditionsURI)
		if err != nil {
			return nil, eris.Wrap(err, "history: open conditions")
		}
		defer rc.Close() //nolint:errcheck
		conds = rc
	}
	return LoadCSV(ctx, yields, conds)
}

// loadXLSX stages both tables on disk since workbooks need random access.
// A CSV table paired with a workbook is staged too and read as CSV.
func (s *FileSource) loadXLSX(ctx context.Context) (*Tables, error) {
	dir, err := os.MkdirTemp("", "cropcast-history-*")
	if err != nil {
		return nil, eris.Wrap(err, "history: create staging dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	stage := func(name, uri string) (table, error) {
		if uri == "" {
			return table{}, nil
		}
		sub := filepath.Join(dir, name)
		if err := os.Mkdir(sub, 0o755); err != nil {
			return table{}, eris.Wrapf(err, "history: stage %s", name)
		}
		path, err := fetcher.ToFile(ctx, s.Fetcher, uri, sub)
		if err != nil {
			return table{}, eris.Wrapf(err, "history: stage %s", name)
		}
		if isXLSX(uri) {
			return readXLSX(name, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return table{}, eris.Wrapf(err, "history: open staged %s", name)
		}
		defer f.Close() //nolint:errcheck
		return readCSV(ctx, name, f)
	}

	yt, err := stage("yields", s.YieldsURI)
	if err != nil {
		return nil, err
	}
	ct, err := stage("conditions", s.ConditionsURI)
	if err != nil {
		return nil, err
	}
	return build(yt, ct)
}

func isXLSX(uri string) bool {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		uri = u.Path
	}
	return strings.HasSuffix(strings.ToLower(uri), ".xlsx")
}
