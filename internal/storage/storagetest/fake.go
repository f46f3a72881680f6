// Package storagetest provides an in-memory storage.Client for handler tests.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/freekieb7/go-drawer/internal/storage"
)

// Fake is an in-memory storage provider. Paths are case sensitive and the root
// folder always exists. Set Err to make every call fail with it.
type Fake struct {
	mu      sync.Mutex
	entries map[string]storage.Entry
	content map[string][]byte
	tags    map[string][]string

	Err   error
	Usage storage.Usage
	// Tokens records the access token of every call, in order.
	Tokens []string
}

func NewFake() *Fake {
	return &Fake{
		entries: map[string]storage.Entry{},
		content: map[string][]byte{},
		tags:    map[string][]string{},
	}
}

// PutFile stores a file, creating no parent folders.
func (f *Fake) PutFile(p string, content []byte) storage.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putFile(p, content)
}

func (f *Fake) putFile(p string, content []byte) storage.Entry {
	e := storage.Entry{
		Type: storage.EntryFile,
		Name: path.Base(p),
		Path: p,
		Size: uint64(len(content)),
		Rev:  "rev-" + strings.TrimPrefix(p, "/"),
	}
	f.entries[p] = e
	f.content[p] = slices.Clone(content)
	return e
}

// File returns the stored content of p.
func (f *Fake) File(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.content[p]
	return c, ok
}

func (f *Fake) begin(accessToken string) (func(), error) {
	f.mu.Lock()
	f.Tokens = append(f.Tokens, accessToken)
	if f.Err != nil {
		f.mu.Unlock()
		return nil, f.Err
	}
	return f.mu.Unlock, nil
}

func (f *Fake) ListFolder(_ context.Context, accessToken, p string) ([]storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return nil, err
	}
	defer done()

	if p != "/" {
		if e, ok := f.entries[p]; !ok || e.Type != storage.EntryFolder {
			return nil, storage.ErrNotFound
		}
	}

	out := []storage.Entry{}
	for key, e := range f.entries {
		if path.Dir(key) == p {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *Fake) CreateFolder(_ context.Context, accessToken, p string) (storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Entry{}, err
	}
	defer done()

	if _, ok := f.entries[p]; ok {
		return storage.Entry{}, storage.ErrConflict
	}
	e := storage.Entry{Type: storage.EntryFolder, Name: path.Base(p), Path: p}
	f.entries[p] = e
	return e, nil
}

func (f *Fake) Delete(_ context.Context, accessToken, p string) (storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Entry{}, err
	}
	defer done()

	e, ok := f.entries[p]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	for key := range f.entries {
		if key == p || strings.HasPrefix(key, p+"/") {
			delete(f.entries, key)
			delete(f.content, key)
		}
	}
	return e, nil
}

func (f *Fake) Move(_ context.Context, accessToken, from, to string) (storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Entry{}, err
	}
	defer done()

	e, ok := f.entries[from]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	if _, exists := f.entries[to]; exists {
		return storage.Entry{}, storage.ErrConflict
	}
	delete(f.entries, from)
	e.Path, e.Name = to, path.Base(to)
	f.entries[to] = e
	if c, ok := f.content[from]; ok {
		delete(f.content, from)
		f.content[to] = c
	}
	return e, nil
}

func (f *Fake) Upload(_ context.Context, accessToken, p string, content io.Reader, overwrite bool) (storage.Entry, error) {
	// Drain before locking, like a real transport would.
	data, readErr := io.ReadAll(content)

	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Entry{}, err
	}
	defer done()

	if readErr != nil {
		return storage.Entry{}, storage.ErrUpstream
	}
	if _, exists := f.entries[p]; exists && !overwrite {
		return storage.Entry{}, storage.ErrConflict
	}
	return f.putFile(p, data), nil
}

func (f *Fake) Download(_ context.Context, accessToken, p string) (io.ReadCloser, storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return nil, storage.Entry{}, err
	}
	defer done()

	e, ok := f.entries[p]
	if !ok {
		return nil, storage.Entry{}, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.content[p])), e, nil
}

func (f *Fake) TemporaryLink(_ context.Context, accessToken, p string) (storage.Link, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Link{}, err
	}
	defer done()

	e, ok := f.entries[p]
	if !ok {
		return storage.Link{}, storage.ErrNotFound
	}
	return storage.Link{URL: "https://dl.example.test" + p, Entry: e}, nil
}

func (f *Fake) ListRevisions(_ context.Context, accessToken, p string, limit int) ([]storage.Entry, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return nil, err
	}
	defer done()

	e, ok := f.entries[p]
	if !ok || e.Type != storage.EntryFile {
		return nil, storage.ErrNotFound
	}
	return []storage.Entry{e}[:min(1, limit)], nil
}

func (f *Fake) SpaceUsage(_ context.Context, accessToken string) (storage.Usage, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return storage.Usage{}, err
	}
	defer done()
	return f.Usage, nil
}

func (f *Fake) GetTags(_ context.Context, accessToken, p string) ([]string, error) {
	done, err := f.begin(accessToken)
	if err != nil {
		return nil, err
	}
	defer done()

	if _, ok := f.entries[p]; !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(f.tags[p]), nil
}

func (f *Fake) AddTag(_ context.Context, accessToken, p, tag string) error {
	done, err := f.begin(accessToken)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := f.entries[p]; !ok {
		return storage.ErrNotFound
	}
	if !slices.Contains(f.tags[p], tag) {
		f.tags[p] = append(f.tags[p], tag)
	}
	return nil
}

func (f *Fake) RemoveTag(_ context.Context, accessToken, p, tag string) error {
	done, err := f.begin(accessToken)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := f.entries[p]; !ok {
		return storage.ErrNotFound
	}
	f.tags[p] = slices.DeleteFunc(f.tags[p], func(t string) bool { return t == tag })
	return nil
}

var _ storage.Client = (*Fake)(nil)
