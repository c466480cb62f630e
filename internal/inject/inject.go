package inject

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/qwenbot/internal/browser"
	"github.com/dmorgan81/qwenbot/internal/feed"
	"github.com/dmorgan81/qwenbot/internal/handler"
	"github.com/dmorgan81/qwenbot/internal/image"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/dmorgan81/qwenbot/internal/param"
	"github.com/dmorgan81/qwenbot/internal/prompt"
	"github.com/dmorgan81/qwenbot/internal/store"
	"github.com/dmorgan81/qwenbot/internal/token"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})

	do.ProvideValue[browser.Options](injector, browser.Options{
		Headless:  envBool("BROWSER_HEADLESS", true),
		UserAgent: os.Getenv("BROWSER_USER_AGENT"),
	})
	do.Provide[image.QwenConfig](injector, func(i *do.Injector) (image.QwenConfig, error) {
		model, err := fetchOne(ctx, i, "QWEN_MODEL_PARAM", "QWEN_MODEL", image.DefaultModel)
		if err != nil {
			return image.QwenConfig{}, err
		}
		return image.QwenConfig{
			BaseURL:    envOr("QWEN_BASE_URL", image.DefaultBaseURL),
			Model:      model,
			CDNMarker:  envOr("QWEN_CDN_MARKER", image.DefaultCDNHost),
			NavTimeout: envDuration("BROWSER_NAV_TIMEOUT", image.DefaultNavTimeout),
		}, nil
	})

	do.Provide[*browser.Playwright](injector, func(i *do.Injector) (*browser.Playwright, error) {
		pw, err := browser.NewPlaywright(i)
		if err != nil {
			return nil, err
		}
		return pw, pw.Launch(ctx)
	})
	do.Provide[browser.Provider](injector, func(i *do.Injector) (browser.Provider, error) {
		return do.MustInvoke[*browser.Playwright](i), nil
	})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.ProvideNamedValue[param.Fetcher](injector, "env", &param.EnvFetcher{})
	do.Provide[token.Provider](injector, token.NewPool)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[image.Generator](injector, image.NewQwenGenerator)
	do.Provide[store.Invalidator](injector, store.NewCloudFrontInvalidator)
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if do.MustInvokeNamed[string](i, "bucket") == "" {
			return &store.FileUploader{Dir: os.Getenv("OUTPUT_DIR")}, nil
		}
		return store.NewS3Uploader(i)
	})
	do.Provide[*feed.Generator](injector, feed.NewS3Generator)

	do.ProvideNamed[[]string](injector, "tokens", func(i *do.Injector) ([]string, error) {
		return fetchList(ctx, i, "QWEN_TOKENS_PARAM", "QWEN_TOKENS")
	})
	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		return fetchList(ctx, i, "PROMPTS_PARAM", "PROMPTS")
	})
	do.ProvideNamedValue[string](injector, "bucket", os.Getenv("BUCKET"))
	do.ProvideNamedValue[string](injector, "distribution", os.Getenv("DISTRIBUTION"))
	do.ProvideNamedValue[string](injector, "site_url", envOr("SITE_URL", "https://"+os.Getenv("BUCKET")))

	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}

// fetchList reads from the parameter store when paramEnv names a path,
// otherwise from the comma separated variable envKey. Unset means empty.
func fetchList(ctx context.Context, i *do.Injector, paramEnv, envKey string) ([]string, error) {
	if path := os.Getenv(paramEnv); path != "" {
		return do.MustInvoke[param.Fetcher](i).FetchAll(ctx, path)
	}
	if _, ok := os.LookupEnv(envKey); !ok {
		return nil, nil
	}
	return do.MustInvokeNamed[param.Fetcher](i, "env").FetchAll(ctx, envKey)
}

// fetchOne is fetchList for a single value, falling back to def when neither
// variable is set.
func fetchOne(ctx context.Context, i *do.Injector, paramEnv, envKey, def string) (string, error) {
	if path := os.Getenv(paramEnv); path != "" {
		v, err := do.MustInvoke[param.Fetcher](i).Fetch(ctx, path)
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", path, err)
		}
		return lo.CoalesceOrEmpty(strings.TrimSpace(v), def), nil
	}
	return envOr(envKey, def), nil
}
