package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imrich/internal/certificate/cache"
	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/handler"
	certmetrics "imrich/internal/certificate/metrics"
	"imrich/internal/certificate/payments"
	"imrich/internal/certificate/producer"
	"imrich/internal/certificate/service"
	jwttoken "imrich/internal/jwt_token"
	"imrich/internal/platform/config"
	"imrich/internal/platform/httpserver"
	"imrich/internal/platform/kafka/consumer"
	"imrich/internal/platform/metrics"
	"imrich/internal/platform/middleware"
	"imrich/internal/platform/redis"
	rlmetrics "imrich/internal/ratelimit/metrics"
	rlmiddleware "imrich/internal/ratelimit/middleware"
	"imrich/internal/ratelimit/store/bucket"
	httptransport "imrich/internal/transport/http"
	"imrich/pkg/platform/audit/publisher"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the payment status consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// serve wires dependencies and runs until ctx is cancelled.
func serve(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	cat, err := catalog.Load(cfg.ModelCatalogPath)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewWithRegisterer(registry)
	certMetrics := certmetrics.NewWithRegisterer(registry)

	auditor := publisher.NewPublisher(st.audit, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))
	defer auditor.Close()

	urls := service.URLs{AssetBase: cfg.AssetBaseURL, PublicBase: cfg.PublicBaseURL}
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(certMetrics),
		service.WithAuditPublisher(auditor),
		service.WithProducerTimeout(cfg.Producer.Timeout),
		service.WithOwnerEmailExposure(cfg.Verification.ExposeOwnerEmail),
		service.WithURLs(urls),
	}
	if rdb != nil {
		opts = append(opts, service.WithCache(cache.NewRedis(rdb.Client, cache.WithTTL(cfg.Redis.CacheTTL))))
	}
	svc := service.New(st.certificates, newProducer(cfg, log), cat, opts...)

	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	limiter := newVerifyLimiter(cfg, rdb, log, rlmetrics.NewWithRegisterer(registry))
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	certHandler := handler.New(svc, cat, urls, log, httpMetrics, jwttoken.NewJWTServiceAdapter(jwtService),
		handler.WithVerifyRateLimit(limiter.RateLimitByIP()),
		handler.WithTrustedProxies(trusted),
		handler.WithWebhookSecret(cfg.Payments.WebhookSecret),
		handler.WithServiceName(cfg.ServiceName),
		handler.WithRequestTimeout(cfg.RequestTimeout),
	)

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(registry, certHandler), cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		c, err := consumer.New(consumer.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.PaymentTopic,
			Group:    cfg.Kafka.ConsumerGroup,
			ClientID: cfg.ServiceName,
		}, payments.NewHandler(svc, log), consumer.WithLogger(log))
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure payment topic", "topic", cfg.Kafka.PaymentTopic, "error", err)
		}
		g.Go(func() error {
			return c.Run(gctx)
		})
	} else {
		log.Info("kafka brokers not configured; payment updates arrive by webhook only")
	}

	return g.Wait()
}

func newProducer(cfg config.Server, log *slog.Logger) producer.Producer {
	if cfg.Producer.URL == "" {
		log.Warn("PRODUCER_URL not set; using placeholder artifacts")
		return producer.NewPlaceholder(0)
	}
	return producer.NewHTTPProducer(cfg.Producer.URL, cfg.Producer.APIKey, cfg.Producer.Timeout)
}

// newVerifyLimiter prefers a shared Redis window and keeps an in-memory
// window as fallback. It passes everything through unless
// RATELIMIT_VERIFY_ENABLED is set.
func newVerifyLimiter(cfg config.Server, rdb *redis.Client, log *slog.Logger, m *rlmetrics.Metrics) *rlmiddleware.Middleware {
	fallback := bucket.NewInMemoryBucketStore()
	opts := []rlmiddleware.Option{
		rlmiddleware.WithDisabled(!cfg.RateLimit.VerifyEnabled),
		rlmiddleware.WithLimit(cfg.RateLimit.VerifyRequests, cfg.RateLimit.VerifyWindow),
		rlmiddleware.WithMetrics(m),
	}
	if rdb == nil {
		return rlmiddleware.New(fallback, log, opts...)
	}
	opts = append(opts, rlmiddleware.WithFallback(fallback))
	return rlmiddleware.New(bucket.NewRedisBucketStore(rdb.Client), log, opts...)
}
