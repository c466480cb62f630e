package image

import (
	"context"
	"time"
)

type Mode string

const (
	ModeTextToImage Mode = "t2i"
	ModeImageEdit   Mode = "image_edit"
)

const DefaultSize = "1:1"

// Request is one image job. SourceImages is empty for plain generation.
type Request struct {
	Prompt       string   `validate:"required"`
	Size         string
	Mode         Mode     `validate:"oneof=t2i image_edit"`
	SourceImages []string `validate:"dive,url"`
}

type ChatSession struct {
	ID        string
	CreatedAt time.Time
}

type Generator interface {
	GenerateImage(ctx context.Context, prompt, size string) Result
	ComposeImages(ctx context.Context, imageURLs []string, prompt string) Result
}
