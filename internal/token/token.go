package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var ErrNoToken = errors.New("no token available")

type Token struct {
	Value string
	Owner string
}

type Provider interface {
	Available(context.Context) (*Token, error)
}

// Pool hands out tokens round-robin. It performs no validation or refresh;
// tokens are assumed to be fetched ahead of time.
type Pool struct {
	mu     sync.Mutex
	tokens []Token
	next   int
}

func NewPool(i *do.Injector) (Provider, error) {
	entries := do.MustInvokeNamed[[]string](i, "tokens")
	return NewPoolFromEntries(entries), nil
}

// NewPoolFromEntries parses "owner:token" entries. An entry without an owner
// is named after its position.
func NewPoolFromEntries(entries []string) *Pool {
	entries = lo.Compact(lo.Map(entries, func(e string, _ int) string {
		return strings.TrimSpace(e)
	}))
	tokens := lo.Map(entries, func(e string, idx int) Token {
		owner, value, found := strings.Cut(e, ":")
		if !found {
			return Token{Value: e, Owner: fmt.Sprintf("token-%d", idx+1)}
		}
		return Token{Value: strings.TrimSpace(value), Owner: strings.TrimSpace(owner)}
	})
	return &Pool{tokens: lo.Filter(tokens, func(t Token, _ int) bool { return t.Value != "" })}
}

func (p *Pool) Available(ctx context.Context) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tokens) == 0 {
		return nil, ErrNoToken
	}
	t := p.tokens[p.next%len(p.tokens)]
	p.next++

	log.FromContextOrDiscard(ctx).WithGroup("tokens").Debug("handing out token", "owner", t.Owner)
	return &t, nil
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}
