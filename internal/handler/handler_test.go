package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/qwenbot/internal/image"
	"github.com/dmorgan81/qwenbot/internal/prompt"
	"github.com/dmorgan81/qwenbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	result       image.Result
	gotPrompt    string
	gotSize      string
	gotImages    []string
	composeCalls int
}

func (m *mockGenerator) GenerateImage(ctx context.Context, prompt, size string) image.Result {
	m.gotPrompt, m.gotSize = prompt, size
	return m.result
}

func (m *mockGenerator) ComposeImages(ctx context.Context, urls []string, prompt string) image.Result {
	m.composeCalls++
	m.gotPrompt, m.gotImages = prompt, urls
	return m.result
}

type mockUploader struct {
	mu      sync.Mutex
	uploads map[string]store.UploadParams
	err     error
}

func (m *mockUploader) Upload(ctx context.Context, p store.UploadParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.uploads == nil {
		m.uploads = map[string]store.UploadParams{}
	}
	m.uploads[p.Name] = p
	return nil
}

type mockInvalidator struct {
	paths []string
}

func (m *mockInvalidator) Invalidate(ctx context.Context, paths []string) error {
	m.paths = paths
	return nil
}

func newHandler(gen *mockGenerator, up *mockUploader, inv *mockInvalidator) *Handler {
	return &Handler{
		randomizer:  prompt.New([]string{"16:9|a kitten in a teacup"}, rand.NewSource(1)),
		generator:   gen,
		uploader:    up,
		invalidator: inv,
		now:         func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) },
	}
}

func TestHandler_GenerateAndPublishLatest(t *testing.T) {
	gen := &mockGenerator{result: image.Result{URL: "https://cdn.qwenlm.ai/abc.png", Data: []byte("png")}}
	up := &mockUploader{}
	inv := &mockInvalidator{}

	out, err := newHandler(gen, up, inv).Handle(context.Background(), Input{Prompt: "a red fox in snow"})
	require.NoError(t, err)

	assert.Equal(t, "20261019", out.Date)
	assert.Equal(t, image.ModeTextToImage, out.Mode)
	assert.Equal(t, "1:1", out.Size)
	assert.Equal(t, "1:1", gen.gotSize)
	assert.Equal(t, "https://cdn.qwenlm.ai/abc.png", out.Source)
	assert.Empty(t, out.Error)

	require.Len(t, up.uploads, 4)
	assert.Equal(t, []byte("png"), up.uploads["20261019.png"].Data)
	assert.Equal(t, []byte("png"), up.uploads["latest.png"].Data)
	assert.Equal(t, "a red fox in snow", up.uploads["20261019.png"].Metadata["prompt"])

	var sidecar Output
	require.NoError(t, json.Unmarshal(up.uploads["20261019.json"].Data, &sidecar))
	assert.Equal(t, out, sidecar)

	sort.Strings(inv.paths)
	assert.Equal(t, []string{"/20261019.json", "/20261019.png", "/latest.json", "/latest.png"}, inv.paths)
}

func TestHandler_ComposeWithExplicitDate(t *testing.T) {
	gen := &mockGenerator{result: image.Result{URL: "https://x/y.png", Data: []byte("png")}}
	up := &mockUploader{}

	out, err := newHandler(gen, up, &mockInvalidator{}).Handle(context.Background(), Input{
		Date:   "20250101",
		Prompt: "merge",
		Images: []string{"https://example.com/a.png", "https://example.com/b.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.composeCalls)
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/b.png"}, gen.gotImages)
	assert.Equal(t, image.ModeImageEdit, out.Mode)
	assert.Len(t, up.uploads, 2, "explicit date must not touch latest")
}

func TestHandler_RandomPrompt(t *testing.T) {
	gen := &mockGenerator{result: image.Result{URL: "u", Data: []byte("png")}}

	out, err := newHandler(gen, &mockUploader{}, &mockInvalidator{}).Handle(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "a kitten in a teacup", gen.gotPrompt)
	assert.Equal(t, "16:9", gen.gotSize)
	assert.Equal(t, "16:9", out.Size)
}

func TestHandler_FailureIsOutputNotError(t *testing.T) {
	gen := &mockGenerator{result: image.Result{Failure: &image.Failure{
		Reason:  image.NoResourceFound,
		Message: "no image url in response",
		Excerpt: "data: {...}",
	}}}
	up := &mockUploader{}

	out, err := newHandler(gen, up, &mockInvalidator{}).Handle(context.Background(), Input{Prompt: "cat"})
	require.NoError(t, err)
	assert.Equal(t, "NoResourceFound", out.Error)
	assert.Equal(t, "data: {...}", out.Debug)
	assert.Empty(t, up.uploads)
}

func TestHandler_UploadError(t *testing.T) {
	gen := &mockGenerator{result: image.Result{URL: "u", Data: []byte("png")}}
	up := &mockUploader{err: errors.New("access denied")}

	_, err := newHandler(gen, up, &mockInvalidator{}).Handle(context.Background(), Input{Prompt: "cat"})
	assert.EqualError(t, err, "access denied")
}
