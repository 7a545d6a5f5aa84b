package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vogiaan1904/ticketbottle-gate/config"
	grpcSvc "github.com/vogiaan1904/ticketbottle-gate/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/ticketbottle-gate/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka/producer"
	natsDelivery "github.com/vogiaan1904/ticketbottle-gate/internal/delivery/nats"
	"github.com/vogiaan1904/ticketbottle-gate/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/repository/memory"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/seed"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/ticketbottle-gate/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	pkgNats "github.com/vogiaan1904/ticketbottle-gate/pkg/nats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	// Config and queue state stores
	var (
		cfgRepo repo.ConfigRepository
		stores  service.StoreProvider
		ready   func(ctx context.Context) error
	)
	switch cfg.Gate.StoreDriver {
	case config.StoreDriverMemory:
		l.Warnf(ctx, "Using the in-memory store, queue state is lost on restart")
		cfgRepo = memory.NewConfigRepository()
		stores = service.StaticStoreProvider{Repo: memory.NewQueueStateRepository()}
	default:
		redisCli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(ctx, redisCli, l)

		pool := redis.NewClientPool(redisCli, cfg.Redis, l)
		defer pool.Close()

		cfgRepo = repo.NewRedisConfigRepository(redisCli, l, cfg.Gate.KeyPrefix)
		stores = pool
		ready = func(ctx context.Context) error { return redisCli.Ping(ctx).Err() }
	}

	if cfg.Gate.SeedFile != "" {
		f, err := seed.Load(cfg.Gate.SeedFile)
		if err != nil {
			l.Fatalf(ctx, "Failed to load seed file: %v", err)
		}
		if err := f.Apply(ctx, cfgRepo); err != nil {
			l.Fatalf(ctx, "Failed to apply seed file: %v", err)
		}
		l.Infof(ctx, "Seeded config from %s", cfg.Gate.SeedFile)
	}

	// Kafka
	prod := producer.NewNoopProducer()
	var kConsGr sarama.ConsumerGroup
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kSyncProd, producer.Topics{
			RequestLog:    cfg.Kafka.RequestLogTopic,
			QueueReleased: kafka.TopicQueueReleased,
		}, l)
		defer prod.Close()

		kConsGr, err = pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:    cfg.Kafka.Brokers,
			GroupID:    cfg.Kafka.ConsumerGroupID,
			ClientID:   cfg.Kafka.ClientID,
			FromOldest: cfg.Kafka.ConsumerFromOldest,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
	}

	// Request log sinks
	sinks := make(map[string]service.RequestLogPublisher)
	if cfg.Kafka.Enabled {
		sinks["kafka"] = prod
	}
	if cfg.NATS.Enabled {
		nc, err := pkgNats.NewConn(pkgNats.ConnConfig{URL: cfg.NATS.URL, Name: "waitroom-gate"})
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to NATS: %v", err)
		}
		defer nc.Drain()
		sinks["nats"] = natsDelivery.NewPublisher(nc, cfg.NATS.Subject, l)
	}

	// Initialize services
	cfgSvc := service.NewConfigService(cfgRepo, ticket.NewKeyCache(), cfg.Gate.RoutingPolicy, l)
	if _, err := cfgSvc.EnsureGlobalConfig(ctx); err != nil {
		l.Warnf(ctx, "Global config not available yet: %v", err)
	}
	relSvc := service.NewReleaseService(m, l)
	admSvc := service.NewAdmissionService(ticket.NewCodec(), relSvc, m, l)
	adminSvc := service.NewAdminService(cfgSvc, stores, prod, m, l)
	logSvc := service.NewRequestLogService(sinks, 0, m, l)

	// HTTP gate and ops listeners
	origin, err := url.Parse(cfg.Gate.OriginURL)
	if err != nil {
		l.Fatalf(ctx, "Invalid origin url: %v", err)
	}

	h := httpDelivery.NewHandler(cfgSvc, admSvc, adminSvc, stores, logSvc, httpDelivery.Options{
		Origin:      origin,
		GeoHeader:   cfg.Gate.GeoHeader,
		DebugHeader: cfg.Gate.DebugHeader,
		AdminRate:   cfg.Admin.RateLimit,
		AdminBurst:  cfg.Admin.RateBurst,
	}, l)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(h, l),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.OpsPort),
		Handler:           httpDelivery.NewOpsRouter(reg, ready),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	gRpcSrv := grpc.NewServer()
	grpcSvc.RegisterQueueAdminServer(gRpcSrv, grpcSvc.NewGrpcService(adminSvc, l))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gRpcSrv, healthSrv)
	healthSrv.SetServingStatus(pkgGrpc.QueueAdminServiceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return logSvc.Run(gctx)
	})

	g.Go(func() error {
		l.Infof(ctx, "HTTP gate is listening on port: %d, origin: %s", cfg.Server.HTTPPort, origin)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http gate: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(ctx, "Ops server is listening on port: %d", cfg.Server.OpsPort)
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if kConsGr != nil {
		cons := consumer.NewConsumer(kConsGr, adminSvc, cfg.Kafka.ControlTopic, l)
		if err := cons.Start(gctx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return cons.Close()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info(ctx, "Server shutting down...")

		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(ctx, "HTTP gate shutdown: %v", err)
		}
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(ctx, "Ops server shutdown: %v", err)
		}
		gRpcSrv.GracefulStop()

		return nil
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Server stopped: %v", err)
	}

	l.Info(ctx, "Server exited")
}
