package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragd/internal/chunker"
	"github.com/kailas-cloud/ragd/internal/config"
	"github.com/kailas-cloud/ragd/internal/db"
	dbBadger "github.com/kailas-cloud/ragd/internal/db/badger"
	dbRedis "github.com/kailas-cloud/ragd/internal/db/redis"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/index"
	logpkg "github.com/kailas-cloud/ragd/internal/logger"
	"github.com/kailas-cloud/ragd/internal/metrics"
	"github.com/kailas-cloud/ragd/internal/repository/snapshot"
	"github.com/kailas-cloud/ragd/internal/repository/vectors"
	chiTransport "github.com/kailas-cloud/ragd/internal/transport/chi"
	"github.com/kailas-cloud/ragd/internal/transport/ollama"
	"github.com/kailas-cloud/ragd/internal/transport/tcp"
	"github.com/kailas-cloud/ragd/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/ragd/internal/usecase/health"
	"github.com/kailas-cloud/ragd/internal/usecase/library"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
	"github.com/kailas-cloud/ragd/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, logpkg.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ragd stopped with error", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

//nolint:gocyclo // composition root
func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting ragd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("tcp_port", cfg.Server.Port),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("index_backend", cfg.Storage.IndexBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterAll()

	// Local store: flat index snapshots, and the embedding cache when no database is configured.
	local, err := dbBadger.Open(dbBadger.Config{
		Dir:    filepath.Join(cfg.Storage.DataDir, "badger"),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Warn("Failed to close local store", zap.Error(err))
		}
	}()

	var remote db.Store
	if cfg.UseDatabase() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("create database store: %w", err)
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)
		remote = store
	}

	llm, err := ollama.New(&ollama.Config{
		Host:           cfg.LLM.Host,
		Model:          cfg.LLM.Model,
		EmbeddingModel: ollamaEmbeddingModel(cfg),
		Options: ollama.Options{
			Temperature:   cfg.LLM.Temperature,
			NumPredict:    cfg.LLM.NumPredict,
			NumCtx:        cfg.LLM.NumCtx,
			TopK:          cfg.LLM.TopK,
			TopP:          cfg.LLM.TopP,
			RepeatPenalty: cfg.LLM.RepeatPenalty,
			RepeatLastN:   cfg.LLM.RepeatLastN,
			NumThread:     cfg.LLM.NumThread,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create ollama client: %w", err)
	}

	if err := llm.EnsureModels(ctx); err != nil {
		return fmt.Errorf("models unavailable: %w", err)
	}
	if cfg.LLM.Warmup {
		if err := llm.Warmup(ctx); err != nil {
			logger.Warn("Model warmup failed", zap.Error(err))
		}
	}

	var cacheStore cacheKV = local
	if remote != nil {
		cacheStore = remote
	}
	docEmbedder, provider := buildEmbedder(cfg, llm, cfg.Embedding.DocumentInstruction, cacheStore, logger)
	queryEmbedder, _ := buildEmbedder(cfg, llm, cfg.Embedding.QueryInstruction, cacheStore, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	backend, err := buildBackend(cfg, local, remote, logger)
	if err != nil {
		return err
	}

	cacheSize := 0
	if cfg.Cache.Enabled {
		cacheSize = cfg.Cache.Size
	}
	qa, err := chat.New(queryEmbedder, llm, chat.Options{
		K:               cfg.Retrieval.K,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		DedupPrefixLen:  cfg.Retrieval.DedupPrefixLen,
		CacheSize:       cacheSize,
		Timeout:         time.Duration(cfg.LLM.AskTimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("create chat service: %w", err)
	}

	idx, err := backend.Open(ctx)
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		logger.Warn("No vector index found, run the pipeline to build one",
			zap.String("backend", backend.Kind()),
			zap.String("index", cfg.Storage.IndexName),
		)
	case err != nil:
		return fmt.Errorf("open %s index: %w", backend.Kind(), err)
	default:
		qa.SetIndex(idx)
		metrics.IndexedChunks.Set(float64(idx.Len()))
		logger.Info("Vector index loaded",
			zap.String("backend", backend.Kind()),
			zap.Int("chunks", idx.Len()),
			zap.Int("dimensions", idx.Dimensions()),
		)
	}

	docs, err := library.New(cfg.Storage.DocumentsDir, cfg.Storage.RemovedDir, logger)
	if err != nil {
		return fmt.Errorf("open documents directory: %w", err)
	}
	splitter, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Chunking.Separators)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	pipe := pipeline.New(docs, splitter, docEmbedder, backend, qa, cfg.Embedding.BatchSize, logger)
	docs.OnChange(pipe.OnDocumentsChanged)

	var dbPinger healthuc.Pinger
	if remote != nil {
		dbPinger = remote
	}
	healthSvc := healthuc.New(healthuc.Deps{
		LLM:       llm,
		Embedding: provider,
		Database:  dbPinger,
		Index:     qa,
	})

	tcpSrv := tcp.NewServer(tcp.Config{
		Addr:           net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		BufferSize:     cfg.Server.BufferSize,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		MaxConnections: cfg.Server.MaxConnections,
	}, qa, pipe, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := tcpSrv.ListenAndServe(); err != nil && !errors.Is(err, tcp.ErrServerClosed) {
			return fmt.Errorf("tcp server: %w", err)
		}
		return nil
	})

	var httpSrv *http.Server
	if cfg.HTTP.Port > 0 {
		api := chiTransport.NewServer(docs, pipe, qa, healthSvc, logger)
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           chiTransport.NewRouter(api, cfg.Auth.APIKeys, logger),
			ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", zap.String("addr", httpSrv.Addr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		var errs []error
		if err := tcpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tcp shutdown: %w", err))
		}
		if httpSrv != nil {
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func buildBackend(
	cfg config.Config, local *dbBadger.Store, remote db.Store, logger *zap.Logger,
) (index.Backend, error) {
	name := cfg.Storage.IndexName
	model := cfg.Embedding.Model

	switch cfg.Storage.IndexBackend {
	case "valkey":
		if remote == nil {
			return nil, errors.New("valkey index backend requires database.addrs")
		}
		algo := db.VectorHNSW
		if cfg.Index.Algorithm == "flat" {
			algo = db.VectorFlat
		}
		repo := vectors.New(remote, vectors.Options{
			Algorithm:      algo,
			M:              cfg.Index.HNSWM,
			EFConstruction: cfg.Index.HNSWEFConstruct,
			Logger:         logger,
		})
		return index.NewValkey(repo, name, model), nil
	default:
		return index.NewFlat(snapshot.New(local), name, model), nil
	}
}
