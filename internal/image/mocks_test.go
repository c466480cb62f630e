package image

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/qwenbot/internal/browser"
	"github.com/dmorgan81/qwenbot/internal/token"
)

// --- Mocks ---

type mockPage struct {
	mu sync.Mutex

	chatReply   browser.Reply
	completion  browser.Reply
	doErr       error
	completeErr error
	homeErr     error
	image       *browser.Response
	imageErr    error
	panicOnCall bool

	calls     []browser.Call
	navigated []string
	closed    int
}

func (m *mockPage) Navigate(ctx context.Context, url string, wait browser.WaitUntil, timeout time.Duration) (*browser.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navigated = append(m.navigated, url)
	if wait == browser.WaitDOMContentLoaded {
		if m.homeErr != nil {
			return nil, m.homeErr
		}
		return &browser.Response{Status: 200, Body: []byte("<html></html>")}, nil
	}
	return m.image, m.imageErr
}

func (m *mockPage) Do(ctx context.Context, call browser.Call) (browser.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOnCall {
		panic("page crashed")
	}
	m.calls = append(m.calls, call)
	if m.doErr != nil {
		return browser.Reply{}, m.doErr
	}
	switch {
	case strings.HasSuffix(call.URL, chatCreatePath):
		return m.chatReply, nil
	case strings.Contains(call.URL, chatCompletionPath):
		return m.completion, m.completeErr
	}
	return browser.Reply{}, fmt.Errorf("unexpected call %s", call.URL)
}

func (m *mockPage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

type mockSession struct {
	page    *mockPage
	pageErr error
	opened  int
}

func (m *mockSession) NewPage(ctx context.Context) (browser.Page, error) {
	m.opened++
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	return m.page, nil
}

type mockProvider struct {
	session *mockSession
}

func (m *mockProvider) Current() browser.Session {
	if m.session == nil {
		return nil
	}
	return m.session
}

type mockTokens struct {
	tok *token.Token
	err error
}

func (m *mockTokens) Available(ctx context.Context) (*token.Token, error) {
	return m.tok, m.err
}

// seqIDs returns id-1, id-2, ... so payloads are deterministic.
func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}
