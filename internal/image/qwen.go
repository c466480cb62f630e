package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmorgan81/qwenbot/internal/browser"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/dmorgan81/qwenbot/internal/token"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL     = "https://chat.qwen.ai"
	DefaultModel       = "qwen3-max-2025-10-30"
	DefaultNavTimeout  = 30 * time.Second
	urlLogPrefix       = 80
	chatCreatePath     = "/api/v2/chats/new"
	chatCompletionPath = "/api/v2/chat/completions"
)

type QwenConfig struct {
	BaseURL    string
	Model      string
	CDNMarker  string
	NavTimeout time.Duration
}

// QwenGenerator drives chat.qwen.ai from inside a browser tab. Each call
// opens its own tab and chat, and closes the tab before returning.
type QwenGenerator struct {
	sessions browser.Provider
	tokens   token.Provider
	builder  *Builder
	cfg      QwenConfig
}

func NewQwenGenerator(i *do.Injector) (Generator, error) {
	cfg := do.MustInvoke[QwenConfig](i)
	return NewQwen(
		do.MustInvoke[browser.Provider](i),
		do.MustInvoke[token.Provider](i),
		NewBuilder(cfg.Model, NewUUID, time.Now),
		cfg,
	), nil
}

func NewQwen(sessions browser.Provider, tokens token.Provider, builder *Builder, cfg QwenConfig) *QwenGenerator {
	cfg.BaseURL = strings.TrimRight(lo.Ternary(cfg.BaseURL != "", cfg.BaseURL, DefaultBaseURL), "/")
	cfg.Model = lo.Ternary(cfg.Model != "", cfg.Model, DefaultModel)
	cfg.CDNMarker = lo.Ternary(cfg.CDNMarker != "", cfg.CDNMarker, DefaultCDNHost)
	cfg.NavTimeout = lo.Ternary(cfg.NavTimeout > 0, cfg.NavTimeout, DefaultNavTimeout)
	if builder == nil {
		builder = NewBuilder(cfg.Model, nil, nil)
	}
	return &QwenGenerator{sessions: sessions, tokens: tokens, builder: builder, cfg: cfg}
}

func (g *QwenGenerator) GenerateImage(ctx context.Context, prompt, size string) Result {
	return g.run(ctx, generationVariant(g.cfg.CDNMarker), Request{
		Prompt: prompt,
		Size:   lo.Ternary(size != "", size, DefaultSize),
		Mode:   ModeTextToImage,
	})
}

func (g *QwenGenerator) ComposeImages(ctx context.Context, imageURLs []string, prompt string) Result {
	return g.run(ctx, compositionVariant(g.cfg.CDNMarker), Request{
		Prompt:       prompt,
		Mode:         ModeImageEdit,
		SourceImages: imageURLs,
	})
}

// run executes one job. Input validation is pure and runs before the browser
// and token checks, so a malformed request never touches a collaborator.
func (g *QwenGenerator) run(ctx context.Context, v Variant, req Request) (res Result) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("qwen").With("op", v.Name)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Failure: &Failure{Reason: InternalError, Message: fmt.Sprint(r)}}
		}
		if res.Failure != nil {
			logger.Error("image job failed", "reason", res.Failure.Reason, "error", res.Failure.Message)
		}
	}()

	if err := g.builder.Validate(req); err != nil {
		return Result{Failure: fail(InvalidRequest, err)}
	}

	if g.sessions == nil {
		return Result{Failure: &Failure{Reason: EnvironmentNotReady, Message: "browser not initialized"}}
	}
	sess := g.sessions.Current()
	if sess == nil {
		return Result{Failure: &Failure{Reason: EnvironmentNotReady, Message: "browser not initialized"}}
	}

	if g.tokens == nil {
		return Result{Failure: &Failure{Reason: CredentialUnavailable, Message: "no token provider"}}
	}
	tok, err := g.tokens.Available(ctx)
	if err != nil {
		return Result{Failure: fail(CredentialUnavailable, err)}
	}
	if tok == nil || tok.Value == "" {
		return Result{Failure: &Failure{Reason: CredentialUnavailable, Message: "no valid token"}}
	}
	logger = logger.With("owner", tok.Owner)

	page, err := sess.NewPage(ctx)
	if err != nil {
		return Result{Failure: fail(InternalError, err)}
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("closing page", "error", err)
		}
	}()

	if _, err := page.Navigate(ctx, g.cfg.BaseURL+"/", browser.WaitDOMContentLoaded, g.cfg.NavTimeout); err != nil {
		return Result{Failure: fail(InternalError, err)}
	}

	chat, err := g.createChat(ctx, page, tok.Value, v)
	if err != nil {
		return Result{Failure: fail(InternalError, err)}
	}
	logger.Info("chat created", "chat_id", chat.ID)

	payload, err := g.builder.CompletionPayload(req, chat.ID, v)
	if err != nil {
		return Result{Failure: fail(InvalidRequest, err)}
	}
	body, err := g.complete(ctx, page, tok.Value, chat.ID, payload)
	if err != nil {
		return Result{Failure: fail(InternalError, err)}
	}
	if v.LogExcerpt > 0 {
		logger.Info("completion received", "response", excerpt(body, v.LogExcerpt))
	}

	imageURL, err := Scan(strings.NewReader(body), v.Accept)
	if err != nil {
		return Result{Failure: fail(InternalError, err)}
	}
	logger.Info("image url extracted", "url", excerpt(imageURL, urlLogPrefix)+"...")

	data, err := g.fetch(ctx, page, imageURL)
	if err != nil {
		return Result{Failure: fail(FetchFailed, err)}
	}
	logger.Info("image fetched", "bytes", len(data))

	return Result{URL: imageURL, Data: data}
}

func (g *QwenGenerator) createChat(ctx context.Context, page browser.Page, bearer string, v Variant) (ChatSession, error) {
	body, err := json.Marshal(g.builder.ChatPayload(v))
	if err != nil {
		return ChatSession{}, err
	}
	reply, err := page.Do(ctx, browser.Call{
		Method:  http.MethodPost,
		URL:     g.cfg.BaseURL + chatCreatePath,
		Headers: authHeaders(bearer),
		Body:    body,
	})
	if err != nil {
		return ChatSession{}, err
	}

	res := gjson.Parse(reply.Body)
	id := res.Get("data.id").String()
	if !gjson.Valid(reply.Body) || !res.Get("success").Bool() || id == "" {
		return ChatSession{}, &Failure{
			Reason:  ChatCreationFailed,
			Message: fmt.Sprintf("failed to create chat (status %d)", reply.Status),
		}
	}
	return ChatSession{ID: id, CreatedAt: g.builder.now()}, nil
}

func (g *QwenGenerator) complete(ctx context.Context, page browser.Page, bearer, chatID string, payload CompletionRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	reply, err := page.Do(ctx, browser.Call{
		Method:  http.MethodPost,
		URL:     g.cfg.BaseURL + chatCompletionPath + "?chat_id=" + url.QueryEscape(chatID),
		Headers: authHeaders(bearer),
		Body:    body,
	})
	if err != nil {
		return "", err
	}
	return reply.Body, nil
}

// fetch navigates the tab to the image itself; the CDN only serves requests
// carrying the browser's cookies.
func (g *QwenGenerator) fetch(ctx context.Context, page browser.Page, imageURL string) ([]byte, error) {
	resp, err := page.Navigate(ctx, imageURL, browser.WaitLoad, 0)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("navigation returned no response")
	}
	if !resp.OK() {
		return nil, fmt.Errorf("unexpected status %d", resp.Status)
	}
	return resp.Body, nil
}

func authHeaders(bearer string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+bearer)
	return h
}
