package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/newsdesk/internal/aggregator"
	"github.com/Adda-Baaj/newsdesk/internal/api"
	"github.com/Adda-Baaj/newsdesk/internal/cache"
	"github.com/Adda-Baaj/newsdesk/internal/config"
	"github.com/Adda-Baaj/newsdesk/internal/images"
	"github.com/Adda-Baaj/newsdesk/internal/logger"
	"github.com/Adda-Baaj/newsdesk/internal/metrics"
	"github.com/Adda-Baaj/newsdesk/internal/notifier"
	"github.com/Adda-Baaj/newsdesk/internal/storage"
	"github.com/Adda-Baaj/newsdesk/pkg/httpclient"
	"github.com/Adda-Baaj/newsdesk/pkg/providers"
	"github.com/Adda-Baaj/newsdesk/pkg/publishers"
)

const shutdownTimeout = 10 * time.Second

// Server is the newsdesk runtime: the HTTP API over the aggregator, the cache
// warmer, and the optional publishing pipeline behind it.
type Server struct {
	cfg        *config.Config
	log        logger.Logger
	metrics    *metrics.Metrics
	aggregator *aggregator.Aggregator
	handler    http.Handler
	warmer     *Warmer
	fanout     *publishers.Fanout
	store      storage.SeenStore
}

// NewServer builds the runtime from config. Publishing is wired only when a
// publishers file is configured.
func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New()

	providerReg, err := providers.LoadRegistry(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers registry: %w", err)
	}
	adapters, err := providers.BuildAdapters(providerReg, providers.DefaultFetcherRegistry(providers.DefaultHTTPClient()), providers.AdapterOptions{
		Timeout:    cfg.ProviderTimeout,
		MaxResults: cfg.ProviderMaxResults,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build provider adapters: %w", err)
	}
	adapterIDs := make([]string, 0, len(adapters))
	for _, a := range adapters {
		adapterIDs = append(adapterIDs, a.ID())
	}
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"configured": len(providerReg.All()),
		"enabled":    adapterIDs,
	})

	rawCache, err := cache.NewTTL[aggregator.Result]("raw", cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("init raw cache: %w", err)
	}
	aggOpts := aggregator.Options{
		CacheTTL:     cfg.RawCacheTTL,
		ImageLimit:   cfg.ImageResolveLimit,
		ImageTimeout: cfg.ImageResolveTimeout,
		Metrics:      m,
	}
	if cfg.ImageResolveLimit > 0 {
		imageCache, err := cache.NewTTL[string]("images", cfg.CacheMaxEntries*cfg.ImageResolveLimit)
		if err != nil {
			return nil, fmt.Errorf("init image cache: %w", err)
		}
		aggOpts.Images = images.NewResolver(httpclient.NewRestyClient(10*time.Second), imageCache, images.Options{
			TTL:     cfg.ImageCacheTTL,
			Metrics: m,
		}, log)
	}
	agg, err := aggregator.New(aggregator.FromAdapters(adapters), rawCache, aggOpts, log)
	if err != nil {
		return nil, fmt.Errorf("init aggregator: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		aggregator: agg,
	}

	var notify Notifier
	if cfg.PublishersFile != "" {
		n, err := s.initPublishing(ctx)
		if err != nil {
			s.close()
			return nil, err
		}
		notify = n
	} else {
		log.InfoObj("publishing disabled", "publishers_file", "")
	}

	if len(cfg.WarmCategories) > 0 {
		w, err := NewWarmer(cfg.WarmCron, agg, notify, cfg.WarmCategories, cfg.WarmMaxAge, log)
		if err != nil {
			s.close()
			return nil, err
		}
		s.warmer = w
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.handler = api.NewServer(agg, m, log).NewEngine()
	return s, nil
}

func (s *Server) initPublishing(ctx context.Context) (*notifier.Notifier, error) {
	cfg := s.cfg
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, s.log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	s.fanout = publishers.NewFanout(pubClients, s.log)

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	s.log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ArticleTTL:      cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	s.store = store
	s.log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"article_ttl_seconds":      int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return notifier.New(store, s.fanout, notifier.Options{}, s.log), nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves HTTP and runs the warmer until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.handler == nil {
		return fmt.Errorf("server is not initialized")
	}
	defer s.close()

	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.warmer != nil {
		s.warmer.Start(ctx)
		defer s.warmer.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.InfoObj("http server listening", "server_state", map[string]any{
		"addr":            s.cfg.HTTPAddr,
		"providers":       s.aggregator.Sources(),
		"warm_categories": s.cfg.WarmCategories,
		"publishers":      s.fanout.Size(),
	})

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.InfoObj("http server shutting down", "reason", ctx.Err())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// close releases publishers and the seen store, logging any errors encountered.
func (s *Server) close() {
	if s == nil {
		return
	}
	if err := s.fanout.Close(); err != nil {
		s.log.ErrorObj("publishers close failed", "error", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.ErrorObj("storage close failed", "error", err)
		}
	}
}
