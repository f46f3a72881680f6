package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freekieb7/go-drawer/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := upstream.DefaultBreakerConfig("storage-test")
	return NewHTTPClient(srv.URL, srv.URL, upstream.NewClient(srv.Client(), cfg, logger, nil), logger)
}

func decodeArgs(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var args map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
	return args
}

func TestHTTPClient_ListFolderFollowsCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		args := decodeArgs(t, r)

		switch r.URL.Path {
		case "/2/files/list_folder":
			assert.Equal(t, "", args["path"])
			_, _ = io.WriteString(w, `{"entries":[{".tag":"folder","name":"Courses","path_display":"/Courses","id":"id:1"}],"cursor":"c1","has_more":true}`)
		case "/2/files/list_folder/continue":
			assert.Equal(t, "c1", args["cursor"])
			_, _ = io.WriteString(w, `{"entries":[{".tag":"file","name":"notes.pdf","path_display":"/notes.pdf","size":42,"rev":"r1"}],"cursor":"c2","has_more":false}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	got, err := c.ListFolder(context.Background(), "A1", "/")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, Entry{Type: EntryFolder, ID: "id:1", Name: "Courses", Path: "/Courses"}, got[0])
	assert.Equal(t, EntryFile, got[1].Type)
	assert.Equal(t, uint64(42), got[1].Size)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"expired token", http.StatusUnauthorized, `{"error_summary":"expired_access_token/"}`, ErrUnauthorized},
		{"missing path", http.StatusConflict, `{"error_summary":"path/not_found/.."}`, ErrNotFound},
		{"existing folder", http.StatusConflict, `{"error_summary":"path/conflict/folder/."}`, ErrConflict},
		{"rate limited", http.StatusTooManyRequests, `{"error_summary":"too_many_requests/"}`, ErrRateLimited},
		{"bad request", http.StatusBadRequest, `Error in call to API function`, ErrUpstream},
		{"server error", http.StatusInternalServerError, `oops`, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Delete(context.Background(), "A1", "/a")

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPClient_UploadStreamsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/files/upload", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var arg map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		assert.Equal(t, "/Résumé.txt", arg["path"])
		assert.Equal(t, "overwrite", arg["mode"])

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(body))
		_, _ = io.WriteString(w, `{"name":"Résumé.txt","path_display":"/Résumé.txt","size":5}`)
	})

	got, err := c.Upload(context.Background(), "A1", "/Résumé.txt", strings.NewReader("hello"), true)
	require.NoError(t, err)

	assert.Equal(t, EntryFile, got.Type)
	assert.Equal(t, uint64(5), got.Size)
}

func TestHTTPClient_Download(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/files/download", r.URL.Path)
		w.Header().Set("Dropbox-API-Result", `{"name":"a.txt","path_display":"/a.txt","size":3}`)
		_, _ = io.WriteString(w, "abc")
	})

	body, entry, err := c.Download(context.Background(), "A1", "/a.txt")
	require.NoError(t, err)
	defer body.Close()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))
	assert.Equal(t, "/a.txt", entry.Path)
}

func TestHTTPClient_TagsAndUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/files/tags/get":
			_, _ = io.WriteString(w, `{"paths_to_tags":[{"path":"/a","tags":[{".tag":"user_generated_tag","tag_text":"exam"},{".tag":"user_generated_tag","tag_text":"math"}]}]}`)
		case "/2/files/tags/add":
			assert.Equal(t, "exam", decodeArgs(t, r)["tag_text"])
			_, _ = io.WriteString(w, `null`)
		case "/2/users/get_space_usage":
			assert.Empty(t, r.Header.Get("Content-Type"))
			_, _ = io.WriteString(w, `{"used":100,"allocation":{".tag":"individual","allocated":2000}}`)
		}
	})
	ctx := context.Background()

	tags, err := c.GetTags(ctx, "A1", "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"exam", "math"}, tags)

	require.NoError(t, c.AddTag(ctx, "A1", "/a", "exam"))

	usage, err := c.SpaceUsage(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, Usage{Used: 100, Allocated: 2000}, usage)
}

func TestAPIArgEscapesNonASCII(t *testing.T) {
	got, err := apiArg(map[string]any{"path": "/é😀"})
	require.NoError(t, err)

	assert.Equal(t, `{"path":"/\u00e9\ud83d\ude00"}`, got)
}
