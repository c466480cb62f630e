package image

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrInvalidRequest = errors.New("invalid request")

// IDFunc returns a fresh unique identifier on every call.
type IDFunc func() string

var NewUUID IDFunc = uuid.NewString

type ChatCreateRequest struct {
	Name string `json:"name"`
}

type CompletionRequest struct {
	Stream            bool      `json:"stream"`
	Version           string    `json:"version"`
	IncrementalOutput bool      `json:"incremental_output"`
	ChatID            string    `json:"chat_id"`
	ChatMode          string    `json:"chat_mode"`
	Model             string    `json:"model"`
	ParentID          *string   `json:"parent_id"`
	Size              string    `json:"size,omitempty"`
	Timestamp         int64     `json:"timestamp"`
	Messages          []Message `json:"messages"`
}

type Message struct {
	FID           string        `json:"fid"`
	ParentIDCamel *string       `json:"parentId"`
	ParentID      *string       `json:"parent_id"`
	Role          string        `json:"role"`
	Content       string        `json:"content"`
	ChatType      Mode          `json:"chat_type"`
	SubChatType   Mode          `json:"sub_chat_type"`
	ChildrenIDs   []string      `json:"childrenIds"`
	Extra         MessageExtra  `json:"extra"`
	FeatureConfig FeatureConfig `json:"feature_config"`
	Files         []File        `json:"files"`
	Models        []string      `json:"models"`
	UserAction    string        `json:"user_action"`
	Timestamp     int64         `json:"timestamp"`
}

type MessageExtra struct {
	Meta struct {
		SubChatType Mode `json:"subChatType"`
	} `json:"meta"`
}

type FeatureConfig struct {
	ThinkingEnabled bool   `json:"thinking_enabled"`
	OutputSchema    string `json:"output_schema"`
	ResearchMode    string `json:"research_mode"`
}

// File is an already hosted image referenced by URL, dressed up the way the
// web client describes a finished upload.
type File struct {
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	ItemID       string   `json:"itemId"`
	UploadTaskID string   `json:"uploadTaskId"`
	URL          string   `json:"url"`
	Name         string   `json:"name"`
	FileType     string   `json:"file_type"`
	ShowType     string   `json:"showType"`
	FileClass    string   `json:"file_class"`
	Status       string   `json:"status"`
	Size         int      `json:"size"`
	File         FileInfo `json:"file"`
}

type FileInfo struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Meta     FileMeta `json:"meta"`
}

type FileMeta struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

// Builder produces the two request bodies of one job. It does no I/O.
type Builder struct {
	model    string
	ids      IDFunc
	now      func() time.Time
	validate *validator.Validate
}

func NewBuilder(model string, ids IDFunc, now func() time.Time) *Builder {
	return &Builder{
		model:    model,
		ids:      lo.Ternary(ids != nil, ids, NewUUID),
		now:      lo.Ternary(now != nil, now, time.Now),
		validate: validator.New(),
	}
}

func (b *Builder) Validate(req Request) error {
	if err := b.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Mode == ModeImageEdit && len(req.SourceImages) == 0 {
		return fmt.Errorf("%w: at least one source image is required", ErrInvalidRequest)
	}
	return nil
}

func (b *Builder) ChatPayload(v Variant) ChatCreateRequest {
	return ChatCreateRequest{Name: v.ChatName}
}

func (b *Builder) CompletionPayload(req Request, chatID string, v Variant) (CompletionRequest, error) {
	if err := b.Validate(req); err != nil {
		return CompletionRequest{}, err
	}
	ts := b.now().Unix()

	msg := Message{
		FID:         b.ids(),
		Role:        "user",
		Content:     req.Prompt,
		ChatType:    req.Mode,
		SubChatType: req.Mode,
		ChildrenIDs: []string{b.ids()},
		FeatureConfig: FeatureConfig{
			ThinkingEnabled: false,
			OutputSchema:    "phase",
			ResearchMode:    v.ResearchMode,
		},
		Files:      b.files(req.SourceImages),
		Models:     []string{b.model},
		UserAction: "chat",
		Timestamp:  ts,
	}
	msg.Extra.Meta.SubChatType = req.Mode

	return CompletionRequest{
		Stream:            true,
		Version:           "2.1",
		IncrementalOutput: true,
		ChatID:            chatID,
		ChatMode:          "normal",
		Model:             b.model,
		Size:              req.Size,
		Timestamp:         ts,
		Messages:          []Message{msg},
	}, nil
}

func (b *Builder) files(urls []string) []File {
	return lo.Map(urls, func(u string, i int) File {
		name := fmt.Sprintf("image%d.png", i+1)
		return File{
			Type:         "image",
			ID:           b.ids(),
			ItemID:       b.ids(),
			UploadTaskID: b.ids(),
			URL:          u,
			Name:         name,
			FileType:     "image/png",
			ShowType:     "image",
			FileClass:    "vision",
			Status:       "uploaded",
			File: FileInfo{
				ID:       b.ids(),
				Filename: name,
				Meta:     FileMeta{Name: name, ContentType: "image/png"},
			},
		}
	})
}
