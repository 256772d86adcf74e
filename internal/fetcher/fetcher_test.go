package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	body string
	got  []string
}

func (s *stubFetcher) Download(_ context.Context, uri string) (io.ReadCloser, error) {
	s.got = append(s.got, uri)
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestMux_Dispatch(t *testing.T) {
	h := &stubFetcher{body: "http"}
	f := &stubFetcher{body: "ftp"}
	m := &Mux{HTTP: h, FTP: f}

	for uri, want := range map[string]string{
		"https://quickstats.nass.usda.gov/yields.csv": "http",
		"ftp://ftp.nass.usda.gov/quickstats/yields.csv": "ftp",
	} {
		rc, err := m.Download(context.Background(), uri)
		require.NoError(t, err)
		data, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, want, string(data), uri)
	}
	assert.Len(t, h.got, 1)
	assert.Len(t, f.got, 1)
}

func TestMux_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yields.csv")
	require.NoError(t, os.WriteFile(path, []byte("commodity,state"), 0o644))

	m := &Mux{}
	for _, uri := range []string{path, "file://" + path} {
		rc, err := m.Download(context.Background(), uri)
		require.NoError(t, err, uri)
		data, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, "commodity,state", string(data))
	}
}

func TestMux_Errors(t *testing.T) {
	m := &Mux{}
	_, err := m.Download(context.Background(), "s3://bucket/yields.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "s3"`)

	_, err = m.Download(context.Background(), "https://example.com/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no http fetcher")

	_, err = m.Download(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := ToFile(context.Background(), &stubFetcher{body: "payload"}, "https://example.com/data/conditions.xlsx?v=2", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conditions.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
