package param

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}

// EnvFetcher reads parameters from environment variables. FetchAll splits a
// comma separated value.
type EnvFetcher struct {
	Lookup func(string) (string, bool)
}

func (f *EnvFetcher) lookup(name string) (string, error) {
	lookup := lo.Ternary(f.Lookup != nil, f.Lookup, os.LookupEnv)
	v, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return v, nil
}

func (f *EnvFetcher) Fetch(_ context.Context, name string) (string, error) {
	return f.lookup(name)
}

func (f *EnvFetcher) FetchAll(_ context.Context, name string) ([]string, error) {
	v, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})), nil
}
