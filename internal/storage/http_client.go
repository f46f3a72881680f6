package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/freekieb7/go-drawer/internal/upstream"
)

// HTTPClient talks to a Dropbox v2 compatible API. RPC routes live on apiURL,
// upload and download routes on contentURL.
type HTTPClient struct {
	apiURL     string
	contentURL string
	http       *upstream.Client
	logger     *slog.Logger
}

func NewHTTPClient(apiURL, contentURL string, httpClient *upstream.Client, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		contentURL: strings.TrimRight(contentURL, "/"),
		http:       httpClient,
		logger:     logger,
	}
}

type metadata struct {
	Tag            string     `json:".tag"`
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	PathDisplay    string     `json:"path_display"`
	Size           uint64     `json:"size"`
	Rev            string     `json:"rev"`
	ServerModified *time.Time `json:"server_modified"`
	ContentHash    string     `json:"content_hash"`
}

func (m metadata) entry() Entry {
	return Entry{
		Type:           m.Tag,
		ID:             m.ID,
		Name:           m.Name,
		Path:           m.PathDisplay,
		Size:           m.Size,
		Rev:            m.Rev,
		ServerModified: m.ServerModified,
		ContentHash:    m.ContentHash,
	}
}

func entries(ms []metadata, tag string) []Entry {
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		if m.Tag == "" {
			m.Tag = tag
		}
		out = append(out, m.entry())
	}
	return out
}

type metadataResult struct {
	Metadata metadata `json:"metadata"`
}

func (c *HTTPClient) ListFolder(ctx context.Context, accessToken, path string) ([]Entry, error) {
	var page struct {
		Entries []metadata `json:"entries"`
		Cursor  string     `json:"cursor"`
		HasMore bool       `json:"has_more"`
	}
	if err := c.rpc(ctx, accessToken, "files/list_folder", map[string]any{"path": apiPath(path)}, &page); err != nil {
		return nil, err
	}

	result := entries(page.Entries, "")
	for page.HasMore {
		cursor := page.Cursor
		page.Entries, page.HasMore = nil, false
		if err := c.rpc(ctx, accessToken, "files/list_folder/continue", map[string]any{"cursor": cursor}, &page); err != nil {
			return nil, err
		}
		result = append(result, entries(page.Entries, "")...)
	}
	return result, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, accessToken, path string) (Entry, error) {
	var res metadataResult
	if err := c.rpc(ctx, accessToken, "files/create_folder_v2", map[string]any{"path": path, "autorename": false}, &res); err != nil {
		return Entry{}, err
	}
	res.Metadata.Tag = EntryFolder
	return res.Metadata.entry(), nil
}

func (c *HTTPClient) Delete(ctx context.Context, accessToken, path string) (Entry, error) {
	var res metadataResult
	if err := c.rpc(ctx, accessToken, "files/delete_v2", map[string]any{"path": path}, &res); err != nil {
		return Entry{}, err
	}
	return res.Metadata.entry(), nil
}

func (c *HTTPClient) Move(ctx context.Context, accessToken, from, to string) (Entry, error) {
	var res metadataResult
	args := map[string]any{"from_path": from, "to_path": to, "autorename": false}
	if err := c.rpc(ctx, accessToken, "files/move_v2", args, &res); err != nil {
		return Entry{}, err
	}
	return res.Metadata.entry(), nil
}

func (c *HTTPClient) Upload(ctx context.Context, accessToken, path string, content io.Reader, overwrite bool) (Entry, error) {
	mode := "add"
	if overwrite {
		mode = "overwrite"
	}
	arg, err := apiArg(map[string]any{"path": path, "mode": mode, "autorename": false, "mute": true})
	if err != nil {
		return Entry{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/2/files/upload", content)
	if err != nil {
		return Entry{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := c.do(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()

	var m metadata
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Entry{}, fmt.Errorf("%w: decode upload result: %w", ErrUpstream, err)
	}
	m.Tag = EntryFile
	return m.entry(), nil
}

func (c *HTTPClient) Download(ctx context.Context, accessToken, path string) (io.ReadCloser, Entry, error) {
	arg, err := apiArg(map[string]any{"path": path})
	if err != nil {
		return nil, Entry{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/2/files/download", http.NoBody)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := c.do(req)
	if err != nil {
		return nil, Entry{}, err
	}

	var m metadata
	if raw := resp.Header.Get("Dropbox-API-Result"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			resp.Body.Close()
			return nil, Entry{}, fmt.Errorf("%w: decode download result: %w", ErrUpstream, err)
		}
	}
	m.Tag = EntryFile
	return resp.Body, m.entry(), nil
}

func (c *HTTPClient) TemporaryLink(ctx context.Context, accessToken, path string) (Link, error) {
	var res struct {
		Metadata metadata `json:"metadata"`
		Link     string   `json:"link"`
	}
	if err := c.rpc(ctx, accessToken, "files/get_temporary_link", map[string]any{"path": path}, &res); err != nil {
		return Link{}, err
	}
	res.Metadata.Tag = EntryFile
	return Link{URL: res.Link, Entry: res.Metadata.entry()}, nil
}

func (c *HTTPClient) ListRevisions(ctx context.Context, accessToken, path string, limit int) ([]Entry, error) {
	var res struct {
		Entries []metadata `json:"entries"`
	}
	if err := c.rpc(ctx, accessToken, "files/list_revisions", map[string]any{"path": path, "limit": limit}, &res); err != nil {
		return nil, err
	}
	return entries(res.Entries, EntryFile), nil
}

func (c *HTTPClient) SpaceUsage(ctx context.Context, accessToken string) (Usage, error) {
	var res struct {
		Used       uint64 `json:"used"`
		Allocation struct {
			Allocated uint64 `json:"allocated"`
		} `json:"allocation"`
	}
	if err := c.rpc(ctx, accessToken, "users/get_space_usage", nil, &res); err != nil {
		return Usage{}, err
	}
	return Usage{Used: res.Used, Allocated: res.Allocation.Allocated}, nil
}

func (c *HTTPClient) GetTags(ctx context.Context, accessToken, path string) ([]string, error) {
	var res struct {
		PathsToTags []struct {
			Tags []struct {
				TagText string `json:"tag_text"`
			} `json:"tags"`
		} `json:"paths_to_tags"`
	}
	if err := c.rpc(ctx, accessToken, "files/tags/get", map[string]any{"paths": []string{path}}, &res); err != nil {
		return nil, err
	}

	tags := []string{}
	for _, p := range res.PathsToTags {
		for _, t := range p.Tags {
			tags = append(tags, t.TagText)
		}
	}
	return tags, nil
}

func (c *HTTPClient) AddTag(ctx context.Context, accessToken, path, tag string) error {
	return c.rpc(ctx, accessToken, "files/tags/add", map[string]any{"path": path, "tag_text": tag}, nil)
}

func (c *HTTPClient) RemoveTag(ctx context.Context, accessToken, path, tag string) error {
	return c.rpc(ctx, accessToken, "files/tags/remove", map[string]any{"path": path, "tag_text": tag}, nil)
}

// rpc posts args as JSON to an RPC route and decodes the result into out when not nil.
func (c *HTTPClient) rpc(ctx context.Context, accessToken, route string, args any, out any) error {
	var body io.Reader = http.NoBody
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal %s arguments: %w", route, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/2/"+route, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", route, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if args != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s result: %w", ErrUpstream, route, err)
	}
	return nil
}

// do sends req and converts every non-2xx outcome into an *APIError.
func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, upstream.ErrOpen) {
			return nil, &APIError{Kind: ErrUnavailable, Summary: "circuit open"}
		}
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return nil, &APIError{Kind: ErrUpstream, StatusCode: statusErr.StatusCode, Summary: string(statusErr.Body)}
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &APIError{Kind: ErrUpstream, Summary: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := parseAPIError(resp)
	c.logger.WarnContext(req.Context(), "Storage request failed",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"summary", apiErr.Summary)
	return nil, apiErr
}

// APIError is a failed storage call. It matches its Kind with errors.Is.
type APIError struct {
	Kind       error
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (%d %s)", e.Kind, e.StatusCode, e.Summary)
	}
	return fmt.Sprintf("%v (%s)", e.Kind, e.Summary)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

func parseAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var body struct {
		ErrorSummary string `json:"error_summary"`
	}
	summary := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.ErrorSummary != "" {
		summary = body.ErrorSummary
	}

	kind := ErrUpstream
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case resp.StatusCode == http.StatusConflict && strings.Contains(summary, "not_found"):
		kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict && strings.Contains(summary, "conflict"):
		kind = ErrConflict
	}

	return &APIError{Kind: kind, StatusCode: resp.StatusCode, Summary: summary}
}

// apiPath maps the root folder "/" to the empty path the API expects.
func apiPath(path string) string {
	if path == "/" {
		return ""
	}
	return path
}

// apiArg encodes v for the Dropbox-API-Arg header, which only carries ASCII.
func apiArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal api arg: %w", err)
	}

	var b strings.Builder
	for _, r := range string(raw) {
		if r < 0x7f {
			b.WriteRune(r)
			continue
		}
		if r > 0xffff {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String(), nil
}
