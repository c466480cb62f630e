package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dmorgan81/qwenbot/internal/image"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/dmorgan81/qwenbot/internal/prompt"
	"github.com/dmorgan81/qwenbot/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Input struct {
	Date   string   `json:"date,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
	Size   string   `json:"size,omitempty"`
	Images []string `json:"images,omitempty"`
}

func (i Input) mode() image.Mode {
	return lo.Ternary(len(i.Images) > 0, image.ModeImageEdit, image.ModeTextToImage)
}

type Output struct {
	Date   string     `json:"date"`
	Prompt string     `json:"prompt"`
	Size   string     `json:"size,omitempty"`
	Mode   image.Mode `json:"mode"`
	Source string     `json:"source,omitempty"`
	Key    string     `json:"key,omitempty"`
	Error  string     `json:"error,omitempty"`
	Debug  string     `json:"debug,omitempty"`
}

func (o Output) toMetadata() map[string]string {
	return map[string]string{
		"date":   o.Date,
		"prompt": o.Prompt,
		"size":   o.Size,
		"mode":   string(o.Mode),
		"source": o.Source,
	}
}

type Handler struct {
	randomizer  *prompt.Randomizer
	generator   image.Generator
	uploader    store.Uploader
	invalidator store.Invalidator
	now         func() time.Time
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		randomizer:  do.MustInvoke[*prompt.Randomizer](i),
		generator:   do.MustInvoke[image.Generator](i),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		now:         time.Now,
	}, nil
}

// Handle runs one job and publishes the image. A failed job is reported in
// Output.Error; only publishing problems are returned as errors.
func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("input", input)
	log.Info("handling lambda invocation")

	if input.Prompt == "" && len(input.Images) == 0 {
		size, prompt, err := h.randomizer.Randomize(ctx)
		if err != nil {
			return Output{}, err
		}
		input.Prompt = prompt
		input.Size = lo.Ternary(input.Size != "", input.Size, size)
	}

	latest := false
	if input.Date == "" {
		input.Date = h.now().UTC().Format("20060102")
		latest = true
	}

	out := Output{Date: input.Date, Prompt: input.Prompt, Size: input.Size, Mode: input.mode()}

	var res image.Result
	if out.Mode == image.ModeImageEdit {
		res = h.generator.ComposeImages(ctx, input.Images, input.Prompt)
	} else {
		out.Size = lo.Ternary(out.Size != "", out.Size, image.DefaultSize)
		res = h.generator.GenerateImage(ctx, input.Prompt, out.Size)
	}
	if !res.OK() {
		out.Error = string(res.Failure.Reason)
		out.Debug = lo.Ternary(res.Failure.Excerpt != "", res.Failure.Excerpt, res.Failure.Message)
		log.Warn("image job failed", "reason", out.Error)
		return out, nil
	}
	out.Source = res.URL
	out.Key = input.Date + ".png"

	sidecar, err := json.Marshal(out)
	if err != nil {
		return Output{}, err
	}

	metadata := out.toMetadata()
	uploads := []store.UploadParams{
		{Name: input.Date + ".png", Data: res.Data, ContentType: "image/png", Metadata: metadata},
		{Name: input.Date + ".json", Data: sidecar, ContentType: "application/json", Metadata: metadata},
	}
	if latest {
		uploads = append(uploads,
			store.UploadParams{Name: "latest.png", Data: res.Data, ContentType: "image/png", Metadata: metadata},
			store.UploadParams{Name: "latest.json", Data: sidecar, ContentType: "application/json", Metadata: metadata},
		)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, u := range uploads {
		u := u
		group.Go(func() error {
			return h.uploader.Upload(gctx, u)
		})
	}
	if err := group.Wait(); err != nil {
		return Output{}, err
	}

	paths := lo.Map(uploads, func(u store.UploadParams, _ int) string {
		return "/" + strings.TrimPrefix(u.Name, "/")
	})
	if err := h.invalidator.Invalidate(ctx, paths); err != nil {
		return Output{}, err
	}

	return out, nil
}
