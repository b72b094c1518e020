package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agave-cli/agavecli/internal/agave"
)

const mediaEndpoint = "files/v2/media/system"

// fakeFiles is an in-memory media service.
type fakeFiles struct {
	remote    map[string]string
	uploadErr error
	openErr   error

	uploads   []fakeUpload
	openCalls int
}

type fakeUpload struct {
	syspath string
	name    string
	content string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{remote: map[string]string{}}
}

func (f *fakeFiles) Upload(_ context.Context, endpoint, syspath, name string, r io.Reader) (*agave.FileInfo, error) {
	if endpoint != mediaEndpoint {
		return nil, errors.New("unexpected endpoint " + endpoint)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	f.uploads = append(f.uploads, fakeUpload{syspath: syspath, name: name, content: string(data)})

	return &agave.FileInfo{Name: name, Path: syspath}, nil
}

func (f *fakeFiles) Open(_ context.Context, _ string, syspath string) (io.ReadCloser, error) {
	f.openCalls++

	if f.openErr != nil {
		return nil, f.openErr
	}

	content, ok := f.remote[syspath]
	if !ok {
		return nil, &agave.ResponseError{StatusCode: http.StatusNotFound, Method: http.MethodGet, URL: syspath}
	}

	return io.NopCloser(strings.NewReader(content)), nil
}

func TestParseLocation(t *testing.T) {
	assert.Equal(t, Location{Remote: true, Path: "sys/a"}, ParseLocation("agave://sys/a"))
	assert.Equal(t, Location{Path: "/local/a"}, ParseLocation("/local/a"))
	assert.Equal(t, Location{Path: "x/agave://y"}, ParseLocation("x/agave://y"))
	assert.Equal(t, "agave://sys/a", ParseLocation("agave://sys/a").String())
}

func TestLocation_Base(t *testing.T) {
	assert.Equal(t, "b.txt", ParseLocation("agave://sys/a/b.txt").Base())
	assert.Equal(t, "", ParseLocation("agave://sys/a/").Base())
	assert.Equal(t, "sys", ParseLocation("agave://sys").Base())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		origin  string
		dest    string
		want    Direction
		wantErr bool
	}{
		{"/local/a", "agave://sys/b", Upload, false},
		{"agave://sys/a", "/local/b", Download, false},
		{"agave://sys/a", "agave://sys2/b", Relay, false},
		{"/local/a", "/local/b", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.origin+" -> "+tt.dest, func(t *testing.T) {
			got, err := Classify(ParseLocation(tt.origin), ParseLocation(tt.dest))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCopyDirection)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopy_LocalToLocalRejected(t *testing.T) {
	files := newFakeFiles()
	_, err := NewRouter(files, mediaEndpoint, nil).Copy(context.Background(), "/local/a", "/local/b")
	assert.ErrorIs(t, err, ErrCopyDirection)
	assert.Zero(t, files.openCalls)
	assert.Empty(t, files.uploads)
}

func TestStrategies_ValidateOwnPrecondition(t *testing.T) {
	r := NewRouter(newFakeFiles(), mediaEndpoint, nil)
	ctx := context.Background()
	local, remote := ParseLocation("/tmp/x"), ParseLocation("agave://sys/x")

	_, err := r.upload(ctx, remote, remote)
	assert.ErrorIs(t, err, ErrCopyDirection)

	_, err = r.download(ctx, local, local)
	assert.ErrorIs(t, err, ErrCopyDirection)

	_, err = r.relay(ctx, remote, local)
	assert.ErrorIs(t, err, ErrCopyDirection)
}

func TestCopy_Upload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "file.ext")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	files := newFakeFiles()
	res, err := NewRouter(files, mediaEndpoint, nil).Copy(context.Background(), src, "agave://sys/dir")
	require.NoError(t, err)

	assert.Equal(t, Upload, res.Direction)
	assert.Equal(t, int64(7), res.Bytes)
	require.Len(t, files.uploads, 1)
	assert.Equal(t, fakeUpload{syspath: "sys/dir", name: "file.ext", content: "payload"}, files.uploads[0])
}

func TestCopy_UploadMissingLocalFile(t *testing.T) {
	files := newFakeFiles()
	_, err := NewRouter(files, mediaEndpoint, nil).Copy(context.Background(), filepath.Join(t.TempDir(), "nope"), "agave://sys/dir")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, files.uploads)
}

func TestCopy_DownloadToFile(t *testing.T) {
	dir := t.TempDir()
	files := newFakeFiles()
	files.remote["sys/data/results.csv"] = "a,b\n1,2\n"

	dest := filepath.Join(dir, "copy.csv")
	res, err := NewRouter(files, mediaEndpoint, nil).Copy(context.Background(), "agave://sys/data/results.csv", dest)
	require.NoError(t, err)

	assert.Equal(t, Download, res.Direction)
	assert.Equal(t, dest, res.LocalPath)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))

	_, err = os.Stat(dest + partialSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopy_DownloadIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	files := newFakeFiles()
	files.remote["sys/data/results.csv"] = "x"

	tests := []struct {
		name string
		dest string
	}{
		{"existing directory", dir},
		{"trailing slash", dir + "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewRouter(files, mediaEndpoint, nil).Copy(context.Background(), "agave://sys/data/results.csv", tt.dest)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "results.csv"), res.LocalPath)
		})
	}
}

func TestCopy_DownloadBadStatusCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	_, err := NewRouter(newFakeFiles(), mediaEndpoint, nil).Copy(context.Background(), "agave://sys/missing", dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, agave.ErrBadResponse)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// relayRoot returns a staging root and a func reporting what is left in it.
func relayRoot(t *testing.T) (string, func() []os.DirEntry) {
	t.Helper()

	root := t.TempDir()

	return root, func() []os.DirEntry {
		entries, err := os.ReadDir(root)
		require.NoError(t, err)

		return entries
	}
}

func TestCopy_RelaySuccessRemovesStaging(t *testing.T) {
	files := newFakeFiles()
	files.remote["sys/a/input.dat"] = "relayed bytes"

	root, left := relayRoot(t)
	r := NewRouter(files, mediaEndpoint, nil)
	r.TempRoot = root

	res, err := r.Copy(context.Background(), "agave://sys/a/input.dat", "agave://sys2/b/output.dat")
	require.NoError(t, err)

	assert.Equal(t, Relay, res.Direction)
	assert.Equal(t, int64(len("relayed bytes")), res.Bytes)
	require.Len(t, files.uploads, 1)
	assert.Equal(t, fakeUpload{syspath: "sys2/b/output.dat", name: "output.dat", content: "relayed bytes"}, files.uploads[0])
	assert.Empty(t, left())
}

func TestCopy_RelayUploadFailureRemovesStaging(t *testing.T) {
	files := newFakeFiles()
	files.remote["sys/a/input.dat"] = "data"
	files.uploadErr = &agave.ResponseError{StatusCode: http.StatusInternalServerError, Method: http.MethodPost}

	root, left := relayRoot(t)
	r := NewRouter(files, mediaEndpoint, nil)
	r.TempRoot = root

	_, err := r.Copy(context.Background(), "agave://sys/a/input.dat", "agave://sys2/b/")
	require.Error(t, err)
	assert.ErrorIs(t, err, agave.ErrBadResponse)
	assert.Empty(t, left())
}

func TestCopy_RelayDownloadFailureCreatesNoStaging(t *testing.T) {
	files := newFakeFiles()

	root, left := relayRoot(t)
	r := NewRouter(files, mediaEndpoint, nil)
	r.TempRoot = root

	_, err := r.Copy(context.Background(), "agave://sys/a/missing", "agave://sys2/b/")
	require.Error(t, err)
	assert.Empty(t, left())
	assert.Empty(t, files.uploads)
}

func TestCopy_RelayNameFromOrigin(t *testing.T) {
	files := newFakeFiles()
	files.remote["sys/a/input.dat"] = "d"

	r := NewRouter(files, mediaEndpoint, nil)
	r.TempRoot = t.TempDir()

	_, err := r.Copy(context.Background(), "agave://sys/a/input.dat", "agave://sys2/b/")
	require.NoError(t, err)
	require.Len(t, files.uploads, 1)
	assert.Equal(t, "input.dat", files.uploads[0].name)
	assert.Equal(t, "sys2/b/", files.uploads[0].syspath)
}

func TestCopy_AgainstMediaService(t *testing.T) {
	var uploaded bytes.Buffer

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("pretty"))

		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/files/v2/media/system/sys/in.txt", r.URL.Path)
			_, _ = w.Write([]byte(strings.Repeat("z", 3000)))
		case http.MethodPost:
			assert.Equal(t, "/files/v2/media/system/sys2/out.txt", r.URL.Path)
			file, _, err := r.FormFile("fileToUpload")
			require.NoError(t, err)
			_, _ = io.Copy(&uploaded, file)
			_, _ = w.Write([]byte(`{"result":{"name":"out.txt","status":"STAGING_QUEUED"}}`))
		}
	}))
	defer srv.Close()

	client := agave.NewClient(srv.URL+"/", nil, agave.BearerToken("tok"), nil).WithPrettyJSON()
	r := NewRouter(client, mediaEndpoint, nil)
	r.TempRoot = t.TempDir()

	res, err := r.Copy(context.Background(), "agave://sys/in.txt", "agave://sys2/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "STAGING_QUEUED", res.Remote.Status)
	assert.Equal(t, 3000, uploaded.Len())
}

func TestResult_JSONUsesStrategyName(t *testing.T) {
	data, err := json.Marshal(Result{Direction: Relay, Bytes: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"direction":"relay","bytes":3}`, string(data))
}
