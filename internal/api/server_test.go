package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VintageWander/filey/internal/catalog"
	"github.com/VintageWander/filey/internal/storage"
	"github.com/VintageWander/filey/internal/storage/local"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

const content = "0123456789abcdefghij"

type fixture struct {
	srv     *httptest.Server
	catalog *catalog.Catalog
	public  uuid.UUID
	private uuid.UUID
	path    string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	secret := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("hidden"), 0o644))

	lb, err := local.New(local.Config{})
	require.NoError(t, err)
	fs := storage.NewRouter(lb)
	cat := catalog.New(catalog.NewMemoryStore(), fs)

	f := &fixture{catalog: cat, public: uuid.New(), private: uuid.New(), path: path}
	_, err = cat.Upsert(context.Background(), []models.FileDraft{
		{ID: f.public, Name: "notes.txt", Visibility: models.Public, Path: path},
		{ID: f.private, Name: "secret.txt", Visibility: models.Private, Path: secret},
	})
	require.NoError(t, err)

	f.srv = httptest.NewServer(NewServer(cat, fs).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) protocol.Envelope[T] {
	t.Helper()
	var env protocol.Envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestInfo(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	env := decode[protocol.OSType](t, resp)
	assert.Equal(t, protocol.MessageHealthy, env.Message)
	assert.Equal(t, protocol.LocalOS(), env.Data)
}

func TestPreflight(t *testing.T) {
	f := setup(t)
	for _, p := range []string{"/files", "/files/" + f.public.String(), "/anything/else"} {
		resp := f.do(t, http.MethodOptions, p, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Content-Range")

		env := decode[any](t, resp)
		assert.Equal(t, protocol.MessagePreflight, env.Message)
		assert.Nil(t, env.Data)
	}
}

func TestFilesListsOnlyPublic(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decode[[]protocol.FileSummary](t, resp)
	assert.Equal(t, protocol.MessageFiles, env.Message)
	require.Len(t, env.Data, 1)
	assert.Equal(t, protocol.FileSummary{ID: f.public, Name: "notes.txt", Mime: "text/plain"}, env.Data[0])
}

func TestFilesEmptyListIsArray(t *testing.T) {
	lb, _ := local.New(local.Config{})
	fs := storage.NewRouter(lb)
	srv := httptest.NewServer(NewServer(catalog.New(catalog.NewMemoryStore(), fs), fs).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"message":"Get all files success","data":[]}`, string(b))
}

func TestGetFileFullBody(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "inline; filename=notes.txt", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "20", resp.Header.Get("Content-Length"))
	assert.Equal(t, content, readBody(t, resp))
}

func TestGetFileDownloadMode(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/files/"+f.public.String()+"?mode=download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=notes.txt", resp.Header.Get("Content-Disposition"))
}

func TestGetFileBadMode(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/files/"+f.public.String()+"?mode=stream", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	env := decode[any](t, resp)
	assert.Contains(t, env.Message, "unknown mode")
}

func TestGetFileRange(t *testing.T) {
	f := setup(t)
	tests := []struct {
		header, body, contentRange string
	}{
		{"bytes=2-5", "2345", "bytes 2-5/20"},
		{"bytes=15-", "fghij", "bytes 15-19/20"},
		{"bytes=-3", "hij", "bytes 17-19/20"},
		{"bytes=18-400", "ij", "bytes 18-19/20"},
		{"bytes=-100", content, "bytes 0-19/20"},
	}
	for _, tt := range tests {
		resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), map[string]string{"Range": tt.header})
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode, tt.header)
		assert.Equal(t, tt.contentRange, resp.Header.Get("Content-Range"), tt.header)
		body := readBody(t, resp)
		assert.Equal(t, tt.body, body, tt.header)
		assert.Len(t, body, int(resp.ContentLength), tt.header)
	}
}

func TestGetFileUnsatisfiableRange(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), map[string]string{"Range": "bytes=20-"})
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	assert.Equal(t, "bytes */20", resp.Header.Get("Content-Range"))
}

func TestGetFileMalformedRangeSendsAll(t *testing.T) {
	f := setup(t)
	for _, h := range []string{"bytes=5-2", "items=0-1", "bytes=0-1,4-5", "bytes=-"} {
		resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), map[string]string{"Range": h})
		assert.Equal(t, http.StatusOK, resp.StatusCode, h)
		assert.Equal(t, content, readBody(t, resp), h)
	}
}

func TestHeadFile(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodHead, "/files/"+f.public.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 20, resp.ContentLength)
	assert.Empty(t, readBody(t, resp))
}

func TestGetFileNotFound(t *testing.T) {
	f := setup(t)
	for _, p := range []string{
		"/files/" + f.private.String(),
		"/files/" + uuid.NewString(),
		"/files/not-a-uuid",
	} {
		resp := f.do(t, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, p)
		env := decode[any](t, resp)
		assert.Contains(t, env.Message, "not found", p)
		assert.Nil(t, env.Data)
	}
}

func TestDeletedFileIsNotFound(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.catalog.Delete(context.Background(), f.public))

	resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, decode[any](t, resp).Message, "not found")
}

func TestVanishedContentIsFilesystemError(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.Remove(f.path))

	resp := f.do(t, http.MethodGet, "/files/"+f.public.String(), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, decode[any](t, resp).Message, "filesystem error")
}

func TestUnknownRoute(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
