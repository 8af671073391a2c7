package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"go.uber.org/zap"

	"github.com/manekies/document-converter-app/internal/async"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/export"
	"github.com/manekies/document-converter-app/internal/ingest"
	"github.com/manekies/document-converter-app/internal/pipeline"
	"github.com/manekies/document-converter-app/internal/server"
)

const maxMessageSize = 32 << 20

func main() {
	// Process lifecycle goes through zap; the conversion stack logs through slog.
	zlog, _ := zap.NewProduction()
	defer func() { _ = zlog.Sync() }()
	log := zlog.Sugar()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := pipeline.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("starting conversion stack: %v", err)
	}
	defer rt.Close()

	if err := rt.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		log.Fatalf("DB health failed: %v", err)
	}
	log.Infow("DB health OK", "dialect", rt.DB.Dialect())

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Server.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.UnaryInterceptor(logger)),
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
	)
	server.RegisterDocumentConverterServer(grpcServer,
		server.NewService(rt.Service, rt.Matcher, rt.Templates, rt.Runs, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	var queue *async.ProcessorQueue
	if cfg.Batch.InboxDir != "" {
		queue = startInbox(ctx, cfg, rt, logger)
		log.Infow("watching inbox", "dir", cfg.Batch.InboxDir, "workers", cfg.Batch.Workers)
	}

	log.Infof("gRPC serving on %s", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Errorw("grpc serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if queue != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Batch.ProcessTimeout)
		queue.Shutdown(shutdownCtx)
		cancel()
	}
	log.Info("stopped")
}

// startInbox feeds images dropped into the inbox through the batch queue. With an outbox
// configured, each finished page is written there as JSON plus an XLSX of its tables.
func startInbox(ctx context.Context, cfg *common.Config, rt *pipeline.Runtime, logger *slog.Logger) *async.ProcessorQueue {
	opts := []async.Option{
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
	}
	if out := cfg.Batch.OutboxDir; out != "" {
		opts = append(opts, async.WithResultSink(func(r async.ItemResult) {
			if r.Err != nil {
				return
			}
			base := filepath.Join(out, trimExt(filepath.Base(r.Path)))
			if err := export.WriteResult(base, r.Response.Result); err != nil {
				logger.Warn("inbox.outbox.write_failed", "path", r.Path, "error", err)
			}
		}))
	}
	queue := async.NewProcessorQueue(rt.Service, logger, opts...)

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Batch.InboxDir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("inbox.watcher.disabled", "dir", cfg.Batch.InboxDir, "error", err)
		return queue
	}
	inbox := ingest.NewInbox(queue, pipeline.Request{Languages: cfg.OCR.Languages}, logger)
	go inbox.Run(ctx, events)
	go func() {
		for err := range errs {
			logger.Warn("inbox.watcher.error", "error", err)
		}
	}()
	return queue
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
