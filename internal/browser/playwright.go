package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// fetchScript runs inside the page. Headers arrive flattened to one value
// per name.
const fetchScript = `async ({ method, url, headers, body }) => {
	const r = await fetch(url, { method, headers, body: body === "" ? undefined : body });
	return { status: r.status, body: await r.text() };
}`

type Options struct {
	Headless  bool
	UserAgent string
}

// Playwright owns a single Chromium browser context shared by all callers.
// Each NewPage call opens its own tab.
type Playwright struct {
	opts Options

	mu      sync.RWMutex
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
}

func NewPlaywright(i *do.Injector) (*Playwright, error) {
	return &Playwright{opts: do.MustInvoke[Options](i)}, nil
}

// Launch starts the driver and browser. It is safe to call more than once.
func (p *Playwright) Launch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bctx != nil {
		return nil
	}

	logger := log.FromContextOrDiscard(ctx).WithGroup("browser")
	logger.Info("launching chromium", "headless", p.opts.Headless)

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("launch chromium: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: lo.Ternary(p.opts.UserAgent != "", playwright.String(p.opts.UserAgent), nil),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("new browser context: %w", err)
	}

	p.pw, p.browser, p.bctx = pw, browser, bctx
	return nil
}

func (p *Playwright) Current() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bctx == nil {
		return nil
	}
	return &session{bctx: p.bctx}
}

// Shutdown implements do.Shutdownable.
func (p *Playwright) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pw == nil {
		return nil
	}
	var errs []error
	if err := p.bctx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	p.pw, p.browser, p.bctx = nil, nil, nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown browser: %v", errs)
	}
	return nil
}

type session struct {
	bctx playwright.BrowserContext
}

func (s *session) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg, err := s.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &page{pg: pg}, nil
}

type page struct {
	pg playwright.Page
}

func (p *page) Navigate(ctx context.Context, url string, wait WaitUntil, timeout time.Duration) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.PageGotoOptions{
		WaitUntil: lo.Ternary(wait == WaitLoad, playwright.WaitUntilStateLoad, playwright.WaitUntilStateDomcontentloaded),
	}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	resp, err := p.pg.Goto(url, opts)
	if err != nil {
		return nil, fmt.Errorf("goto %s: %w", url, err)
	}
	if resp == nil {
		return nil, nil
	}
	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return &Response{Status: resp.Status(), Body: body}, nil
}

func (p *page) Do(ctx context.Context, call Call) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	headers := make(map[string]string, len(call.Headers))
	for k := range call.Headers {
		headers[k] = call.Headers.Get(k)
	}
	out, err := p.pg.Evaluate(fetchScript, map[string]any{
		"method":  call.Method,
		"url":     call.URL,
		"headers": headers,
		"body":    string(call.Body),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("fetch %s: %w", call.URL, err)
	}
	return decodeReply(out)
}

func (p *page) Close() error {
	return p.pg.Close()
}

func decodeReply(v any) (Reply, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Reply{}, fmt.Errorf("unexpected fetch result %T", v)
	}
	var reply Reply
	switch s := m["status"].(type) {
	case int:
		reply.Status = s
	case float64:
		reply.Status = int(s)
	default:
		return Reply{}, fmt.Errorf("unexpected fetch status %T", m["status"])
	}
	body, ok := m["body"].(string)
	if !ok {
		return Reply{}, fmt.Errorf("unexpected fetch body %T", m["body"])
	}
	reply.Body = body
	return reply, nil
}
