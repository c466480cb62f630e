package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/qwenbot/internal/feed"
	"github.com/dmorgan81/qwenbot/internal/image"
	"github.com/dmorgan81/qwenbot/internal/inject"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/dmorgan81/qwenbot/internal/store"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

// deps is what a command needs from the injector; tests swap it out.
type deps struct {
	generator func() (image.Generator, error)
	uploader  func(dest string) (store.Uploader, string)
	feed      func(ctx context.Context) ([]byte, error)
	close     func() error
}

type depsFunc func(ctx context.Context) (*deps, error)

func NewRootCmd() *cobra.Command {
	return newRootCmd(injectedDeps)
}

func newRootCmd(load depsFunc) *cobra.Command {
	var verbose bool
	var envFile string

	root := &cobra.Command{
		Use:           "qwenbot",
		Short:         "Generate and compose images through Qwen chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(envFile); err != nil {
				return err
			}
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			cmd.SetContext(log.NewContext(cmd.Context(), log.NewWithLevel(cmd.ErrOrStderr(), level)))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from file (default .env when present)")

	root.AddCommand(newGenerateCmd(load))
	root.AddCommand(newComposeCmd(load))
	root.AddCommand(newFeedCmd(load))
	return root
}

func newGenerateCmd(load depsFunc) *cobra.Command {
	var promptFlag, sizeFlag, outFlag string
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate an image from a prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := promptFlag
			if prompt == "" && len(args) == 1 {
				prompt = args[0]
			}
			return runJob(cmd, load, outFlag, func(ctx context.Context, gen image.Generator) image.Result {
				return gen.GenerateImage(ctx, prompt, sizeFlag)
			})
		},
	}
	cmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Prompt text")
	cmd.Flags().StringVarP(&sizeFlag, "size", "s", image.DefaultSize, "Aspect ratio")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "image.png", "Output file or s3://bucket/key")
	return cmd
}

func newComposeCmd(load depsFunc) *cobra.Command {
	var promptFlag, outFlag string
	var imagesFlag []string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a new image from existing image URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, load, outFlag, func(ctx context.Context, gen image.Generator) image.Result {
				return gen.ComposeImages(ctx, imagesFlag, promptFlag)
			})
		},
	}
	cmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Prompt text")
	cmd.Flags().StringArrayVarP(&imagesFlag, "image", "i", nil, "Source image URL (repeatable, order kept)")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "composed.png", "Output file or s3://bucket/key")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newFeedCmd(load depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Print the RSS feed of published images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer d.close()

			rss, err := d.feed(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(rss)
			return err
		},
	}
}

func runJob(cmd *cobra.Command, load depsFunc, dest string, job func(context.Context, image.Generator) image.Result) error {
	ctx := cmd.Context()
	d, err := load(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	gen, err := d.generator()
	if err != nil {
		return err
	}
	res := job(ctx, gen)
	if !res.OK() {
		if res.Failure.Excerpt != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "response excerpt:\n%s\n", res.Failure.Excerpt)
		}
		return res.Err()
	}

	uploader, name := d.uploader(dest)
	if err := uploader.Upload(ctx, store.UploadParams{
		Name:        name,
		Data:        res.Data,
		ContentType: "image/png",
		Metadata:    map[string]string{"source": res.URL},
	}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	return nil
}

func loadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func injectedDeps(ctx context.Context) (*deps, error) {
	injector := inject.Setup(ctx)
	return &deps{
		generator: func() (image.Generator, error) {
			return do.Invoke[image.Generator](injector)
		},
		uploader: func(dest string) (store.Uploader, string) {
			if bucket, key, ok := parseS3(dest); ok {
				return &store.S3Uploader{Client: do.MustInvoke[*s3.Client](injector), Bucket: bucket}, key
			}
			return &store.FileUploader{}, dest
		},
		feed: func(ctx context.Context) ([]byte, error) {
			g, err := do.Invoke[*feed.Generator](injector)
			if err != nil {
				return nil, err
			}
			return g.Generate(ctx)
		},
		close: injector.Shutdown,
	}, nil
}

func parseS3(dest string) (string, string, bool) {
	rest, found := strings.CutPrefix(dest, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
