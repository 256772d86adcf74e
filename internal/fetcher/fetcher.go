// Package fetcher retrieves history tables from HTTP, FTP, and local
// sources and parses their CSV and XLSX encodings.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cropcast/internal/config"
)

// Fetcher opens a table by URI.
type Fetcher interface {
	Download(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Mux dispatches on URI scheme. Bare paths and file:// URIs are read from
// the local filesystem.
type Mux struct {
	HTTP Fetcher
	FTP  Fetcher
}

// New builds a Mux whose remote fetchers are configured from cfg.
func New(cfg config.FetchConfig) *Mux {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &Mux{
		HTTP: NewHTTPFetcher(HTTPOptions{
			UserAgent:         cfg.UserAgent,
			Timeout:           timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		FTP: NewFTPFetcher(FTPOptions{Timeout: timeout, MaxRetries: cfg.MaxRetries}),
	}
}

// Download implements Fetcher.
func (m *Mux) Download(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %q", uri)
	}
	switch u.Scheme {
	case "http", "https":
		if m.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", uri)
		}
		return m.HTTP.Download(ctx, uri)
	case "ftp":
		if m.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", uri)
		}
		return m.FTP.Download(ctx, uri)
	case "", "file":
		path := uri
		if u.Scheme == "file" {
			path = u.Path
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		return f, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, uri)
	}
}

// ToFile downloads uri into dir, keeping its base name, and returns the
// local path. Formats that need random access (XLSX) are read from there.
func ToFile(ctx context.Context, f Fetcher, uri, dir string) (string, error) {
	name := filepath.Base(uri)
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		name = filepath.Base(u.Path)
	}

	body, err := f.Download(ctx, uri)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, body); err != nil {
		return "", eris.Wrapf(err, "fetcher: write %s", path)
	}
	return path, nil
}
