package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/revision/internal/cache"
	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/jobs"
	"github.com/emrgen/revision/internal/metrics"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/service"
	"github.com/emrgen/revision/internal/store"
	"github.com/gobuffalo/packr"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcvalidator "github.com/grpc-ecosystem/go-grpc-middleware/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server represents the server
type Server struct {
	cfg *config.Config
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start starts the server
func (s *Server) Start() {
	if err := Start(s.cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// App is the wired service: stores, services, background jobs and the
// REST handler. Close releases the connections it holds.
type App struct {
	Store     store.Store
	Versions  *service.VersionService
	Proposals *service.ProposalService
	Jobs      *jobs.TaskExecutor
	Handler   http.Handler
	Registry  *prometheus.Registry

	closers []func()
}

// NewApp wires the components described by cfg on top of an open store.
func NewApp(cfg *config.Config, versionStore store.Store) (*App, error) {
	compressor, err := compress.Lookup(cfg.Compression)
	if err != nil {
		return nil, err
	}

	app := &App{Store: versionStore}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Registry = reg
	m := metrics.NewMetrics(reg)

	var statsCache cache.StatsCache
	if cfg.RedisAddr != "" {
		redis := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.StatsCacheTTL)
		if err := redis.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = redis.Close() })
		statsCache = redis
	} else {
		logrus.Infof("redis not configured, caching version stats in memory")
		statsCache = cache.NewMemory(cfg.StatsCacheTTL)
	}

	var versionQueue queue.VersionQueue
	if cfg.KafkaBrokers != "" {
		kafka, err := queue.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("connecting to kafka: %w", err)
		}
		versionQueue = kafka
	} else {
		logrus.Infof("kafka not configured, version events are not published")
		versionQueue = queue.NewNop()
	}
	app.closers = append(app.closers, versionQueue.Close)

	app.Versions = service.NewVersionService(compressor, versionStore, statsCache, versionQueue,
		service.WithMaxRetries(cfg.AppendMaxRetries),
		service.WithMetrics(m),
	)
	app.Proposals = service.NewProposalService(versionStore)

	app.Jobs = jobs.NewTaskExecutor(
		jobs.NewStatsWarmTask(cfg.StatsWarmSched, versionStore, app.Versions),
		jobs.NewHistoryAuditTask(cfg.AuditSchedule, versionStore, m),
	)

	restHandler, err := NewHandler(app.Versions, app.Proposals, m, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	apiMux := http.NewServeMux()
	openapiDocs := packr.NewBox("../../docs/v1")
	docsPath := "/v1/docs/"
	apiMux.Handle(docsPath, http.StripPrefix(docsPath, http.FileServer(openapiDocs)))
	apiMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	apiMux.Handle("/", restHandler)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"}, // All origins are allowed
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type", userIDHeader, userNameHeader},
	})
	app.Handler = c.Handler(apiMux)

	return app, nil
}

// Close stops the background jobs and releases the app connections.
func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Start starts the grpc and http servers
func Start(cfg *config.Config) error {
	var err error

	grpcPort := ":" + cfg.GRPCPort
	httpPort := ":" + cfg.HTTPPort

	rdb := config.GetDb(cfg)

	versionStore := store.NewGormStore(rdb)
	if err = versionStore.Migrate(); err != nil {
		return err
	}

	app, err := NewApp(cfg, versionStore)
	if err != nil {
		return err
	}
	defer app.Close()

	if err = app.Jobs.Run(); err != nil {
		return err
	}

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	// the grpc port only carries the health service for load balancers
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			grpcvalidator.UnaryServerInterceptor(),
			// log the request time
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	// Start the rest server
	go func() {
		defer wg.Done()
		logrus.Info("starting rest server on: ", httpPort)
		logrus.Info("click on the following link to view the API documentation: http://localhost", httpPort, "/v1/docs/")
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest server: %v", err)
			}
		}
		logrus.Infof("rest server stopped")
	}()

	// Start the grpc server
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = restServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error stopping rest server: %v", err)
	}

	wg.Wait()

	return nil
}
