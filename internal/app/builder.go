package app

import (
	"context"
	"io"
	"net/http"

	"github.com/samber/lo"

	"ytrunner/internal/account"
	"ytrunner/internal/distribution/youtube"
	"ytrunner/internal/engine"
	"ytrunner/internal/progress"
	"ytrunner/internal/secrets"
	"ytrunner/internal/stream"
	"ytrunner/pkg/config"
	"ytrunner/pkg/httputil"
)

func BuildService(ctx context.Context, cfg *config.Config) (*Service, error) {
	registry, err := account.Load(cfg.AccountsFile)
	if err != nil {
		return nil, err
	}

	store, err := progress.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		return nil, err
	}
	closers := []io.Closer{store}

	router, sourceClosers, err := buildRouter(ctx, cfg, registry.Accounts())
	closers = append(closers, sourceClosers...)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	secretResolver := secrets.NewResolver()
	closers = append(closers, secretResolver)

	provider := youtube.NewProvider(youtube.ProviderOptions{
		ClientID:     cfg.YouTubeClientID,
		ClientSecret: cfg.YouTubeClientSecret,
		TokensDir:    cfg.YouTube.TokensDir,
		RedirectPort: cfg.YouTube.RedirectPort,
		Secrets:      secretResolver,
		Client: youtube.ClientOptions{
			CategoryID: cfg.YouTube.CategoryID,
			ChunkSize:  cfg.YouTube.ChunkSizeMB * 1024 * 1024,
		},
	})

	eng := engine.New(engine.Options{
		Store:       store,
		Credentials: provider,
		Resolvers: func() engine.Resolver {
			return stream.NewResolver(router)
		},
	})

	return NewService(ServiceOptions{
		Config:   cfg,
		Registry: registry,
		Store:    store,
		Provider: provider,
		Engine:   eng,
		Closers:  closers,
	}), nil
}

// buildRouter registers http(s) always and cloud sources only when some
// account references them, so local setups never load cloud credentials.
func buildRouter(ctx context.Context, cfg *config.Config, accounts []account.Account) (*stream.Router, []io.Closer, error) {
	router := stream.NewRouter()

	// max_retries 0 means no retries here; the retry client reads 0 as
	// "use the default".
	retries := cfg.HTTP.MaxRetries
	if retries == 0 {
		retries = -1
	}
	httpSource := stream.NewHTTPSource(httputil.NewRetryClient(
		&http.Client{Timeout: cfg.HTTP.Timeout},
		httputil.RetryConfig{
			MaxRetries:   retries,
			InitialDelay: cfg.HTTP.InitialDelay,
			MaxDelay:     cfg.HTTP.MaxDelay,
		},
	))
	router.Register("http", httpSource)
	router.Register("https", httpSource)

	var closers []io.Closer
	schemes := usedSchemes(accounts)

	if lo.Contains(schemes, "gs") {
		gcs, err := stream.NewGCSSource(ctx)
		if err != nil {
			return nil, closers, err
		}
		router.Register("gs", gcs)
		closers = append(closers, gcs)
	}

	if lo.Contains(schemes, "s3") {
		s3, err := stream.NewS3Source(ctx, stream.S3Options{
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, closers, err
		}
		router.Register("s3", s3)
	}

	return router, closers, nil
}

func usedSchemes(accounts []account.Account) []string {
	refs := lo.FlatMap(accounts, func(a account.Account, _ int) []string {
		s := a.Streams
		return []string{
			s.Video.Base, s.Video.Manifest, s.Thumbnail.Base,
			s.Title.URL, s.Description.URL, s.Tags.URL,
		}
	})
	refs = lo.Filter(refs, func(ref string, _ int) bool { return ref != "" })
	return lo.Uniq(lo.Map(refs, func(ref string, _ int) string { return stream.Scheme(ref) }))
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}
