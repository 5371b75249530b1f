package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/admitsync/admitsync/client"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/infra/database"
	"github.com/admitsync/admitsync/internal/infra/gateway"
	"github.com/admitsync/admitsync/internal/infra/repository"
	"github.com/admitsync/admitsync/internal/interface/rest"
	"github.com/admitsync/admitsync/internal/mapping"
	"github.com/admitsync/admitsync/internal/pkg/logger"
	"github.com/admitsync/admitsync/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the config file")
	serve := flag.Bool("serve", false, "run the on-demand sync API instead of a one-shot run")
	pid := flag.String("pid", "", "sync a single CRM person instead of everything")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTracer(cfg.Server)
		if err != nil {
			log.Fatal("failed to set up tracing", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(cfg.Campus.PostgresDsn)
	if err != nil {
		log.Fatal("failed to connect to target database", zap.Error(err))
	}

	table, err := mapping.Load(cfg.Campus.MappingFileLocation)
	if err != nil {
		log.Fatal("failed to load mapping document", zap.Error(err))
	}

	slate := client.NewSlate(cfg.Slate)
	campusGW := gateway.NewCampusGateway(cfg.Campus)
	repo := repository.NewCampusRepository(db, cfg.Campus)
	engine := usecase.NewSyncEngine(cfg, *configPath, table, slate, campusGW, repo, log)

	if *serve {
		rdb := database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
		lock := repository.NewRedisRunLock(rdb)
		h := rest.NewHandler(engine, lock)
		e := rest.NewServer(cfg.Server, h)
		e.Logger.Fatal(e.Start(cfg.Server.Listen))
		return
	}

	ctx := context.Background()
	var res usecase.Result
	if *pid != "" {
		res, err = engine.SyncOne(ctx, *pid)
	} else {
		res, err = engine.SyncAll(ctx)
	}
	if err != nil {
		if aid := engine.CurrentRecord(); aid != "" {
			log.Error("sync failed", zap.String("aid", aid), zap.Error(err))
		} else {
			log.Error("sync failed", zap.Error(err))
		}
		os.Exit(1)
	}

	fmt.Println(res.Summary())
}

func setupTracer(cfg config.Server) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("admitsync"),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
