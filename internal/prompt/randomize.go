package prompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/samber/do"
)

var ErrNoPrompts = errors.New("no default prompts configured")

// Randomizer picks a default job for scheduled runs. Entries are either
// "size|prompt" or a bare prompt.
type Randomizer struct {
	prompts []string
	rnd     *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, rand.NewSource(time.Now().UTC().Unix())), nil
}

func New(prompts []string, src rand.Source) *Randomizer {
	return &Randomizer{prompts: prompts, rnd: rand.New(src)}
}

func (r *Randomizer) Randomize(ctx context.Context) (string, string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	log.Info("getting random size and prompt")
	if len(r.prompts) == 0 {
		return "", "", ErrNoPrompts
	}
	entry := r.prompts[r.rnd.Intn(len(r.prompts))]
	size, prompt, found := strings.Cut(entry, "|")
	if !found {
		return "", strings.TrimSpace(entry), nil
	}
	return strings.TrimSpace(size), strings.TrimSpace(prompt), nil
}
