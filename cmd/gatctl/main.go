package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/repository"
	"github.com/zafarze/gat-sub000/internal/service"
	"github.com/zafarze/gat-sub000/pkg/cache"
	"github.com/zafarze/gat-sub000/pkg/config"
	"github.com/zafarze/gat-sub000/pkg/database"
	"github.com/zafarze/gat-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	// Imports drop cached reports so the API serves fresh numbers.
	var cacheSvc *service.CacheService
	if client, err := cache.NewRedis(cfg.Redis); err == nil {
		defer client.Close()
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(client, logr), nil, cfg.Analytics.CacheTTL, logr, true)
	} else {
		logr.Warn("redis unavailable, cached reports stay until they expire", zap.Error(err))
	}

	classes := repository.NewClassRepository(db)
	subjects := repository.NewSubjectRepository(db)
	classSubjects := repository.NewClassSubjectRepository(db)
	academic := repository.NewAcademicRepository(db)
	students := repository.NewStudentRepository(db)
	results := repository.NewResultRepository(db)

	catalog := service.NewCatalogService(service.CatalogStores{
		Schools:       repository.NewSchoolRepository(db),
		Academic:      academic,
		Classes:       classes,
		Subjects:      subjects,
		ClassSubjects: classSubjects,
		Students:      students,
	}, cacheSvc, nil, logr)
	registry := service.NewTestRegistryService(service.RegistryStores{
		Tests:         repository.NewGatTestRepository(db),
		Results:       results,
		Classes:       classes,
		Subjects:      subjects,
		ClassSubjects: classSubjects,
		Academic:      academic,
	}, cacheSvc, nil, logr)
	ingest := service.NewIngestService(service.IngestDeps{
		Tests:    registry,
		Catalog:  catalog,
		Students: students,
		Results:  results,
		Tx:       repository.NewTransactor(db),
		Cache:    cacheSvc,
	}, cfg.Ingest, logr)

	cli := commandLine{
		out:      os.Stdout,
		users:    repository.NewUserRepository(db),
		ingest:   ingest,
		warnings: registry,
		migrate: func(ctx context.Context, command string, args ...string) error {
			return database.Migrate(ctx, db, command, args...)
		},
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if err != errHelp {
			logr.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
