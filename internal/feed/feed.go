package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Generator builds an RSS feed from the images the handler published.
type Generator struct {
	client  S3API
	bucket  string
	siteURL string
}

func NewS3Generator(i *do.Injector) (*Generator, error) {
	return &Generator{
		client:  do.MustInvoke[*s3.Client](i),
		bucket:  do.MustInvokeNamed[string](i, "bucket"),
		siteURL: do.MustInvokeNamed[string](i, "site_url"),
	}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("bucket", g.bucket)
	log.Info("generating rss feed")

	siteURL := strings.TrimRight(g.siteURL, "/")
	feed := feeds.Feed{
		Title:       "qwenbot",
		Description: "Images generated through Qwen chat",
		Link:        &feeds.Link{Href: siteURL},
		Updated:     time.Now(),
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(8)

	pager := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{Bucket: &g.bucket})
	for pager.HasMorePages() {
		page, err := pager.NextPage(gctx)
		if err != nil {
			_ = group.Wait()
			return nil, err
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			return strings.HasSuffix(*o.Key, ".png") && !strings.HasPrefix(*o.Key, "latest")
		})

		for _, obj := range objs {
			key := *obj.Key
			group.Go(func() error {
				out, err := g.client.HeadObject(gctx, &s3.HeadObjectInput{Bucket: &g.bucket, Key: &key})
				if err != nil {
					return fmt.Errorf("head %s: %w", key, err)
				}

				meta := out.Metadata
				item := &feeds.Item{
					Title:       fmt.Sprintf("%s:%s:%s", meta["prompt"], meta["mode"], meta["size"]),
					Link:        &feeds.Link{Href: fmt.Sprintf("%s/%s", siteURL, key)},
					Description: meta["source"],
					Updated:     lo.FromPtr(out.LastModified),
				}
				mu.Lock()
				feed.Add(item)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.Before(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}
