package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/embedding"
	"pdf_rag/backend/go/internal/llm"
	"pdf_rag/backend/go/internal/rag_service/api"
	"pdf_rag/backend/go/internal/rag_service/rag/embeddings"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/llms"
	"pdf_rag/backend/go/internal/rag_service/rag/loaders"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/splitters"
	"pdf_rag/backend/go/internal/rag_service/rag/storages/objectstore"
	"pdf_rag/backend/go/internal/rag_service/rag/storages/vectorstore"
	"pdf_rag/backend/go/internal/rag_service/service"
	pkghttp "pdf_rag/backend/go/pkg/http"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Logger.Level)
	appLogger := logger.New("rag_service")
	appLogger.Info(fmt.Sprintf("Starting RAG Service (vector store: %s, collection: %s/%s)",
		cfg.VectorStore.Provider, cfg.VectorStore.CollectionName, cfg.VectorStore.Namespace))

	// 3. Initialize Dependencies
	hc, err := pkghttp.NewClient(cfg.CircuitBreaker)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create HTTP client: %v", err))
	}

	ragService := service.NewService(newDeps(cfg, hc, appLogger), appLogger)

	// 4. Start Gin HTTP Server
	var requestTimeout time.Duration
	if cfg.HTTP.RequestTimeout != "" && cfg.HTTP.RequestTimeout != "0" {
		requestTimeout, err = time.ParseDuration(cfg.HTTP.RequestTimeout)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Invalid http.requestTimeout %q: %v", cfg.HTTP.RequestTimeout, err))
		}
	}
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.NewHandler(ragService), appLogger, api.RouterOptions{
		MaxUploadMB:    cfg.HTTP.MaxUploadMB,
		RequestTimeout: requestTimeout,
	})
	srv := &http.Server{Addr: cfg.HTTP.Address, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 5. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error(fmt.Sprintf("Server stopped with error: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Server gracefully stopped")
}

// newDeps wires the service collaborators. Clients are built on first use so
// that missing credentials fail the request that needs them, not startup.
func newDeps(cfg *config.AppConfig, hc *pkghttp.Client, appLogger *logger.Logger) service.Deps {
	return service.Deps{
		Objects: service.Once(func(context.Context) (interfaces.ObjectStore, error) {
			s, err := objectstore.New(cfg.Storage, hc, appLogger.WithField("component", "objectstore"))
			if err != nil {
				return nil, err
			}
			return s, nil
		}),
		VectorStore: func(ctx context.Context) (interfaces.VectorStore, error) {
			return vectorstore.Open(ctx, cfg.VectorStore, vectorstore.WithLogger(appLogger.WithField("component", "vectorstore")))
		},
		Embedder: service.Once(func(ctx context.Context) (interfaces.EmbeddingModel, error) {
			if err := cfg.Embedding.Validate(); err != nil {
				return nil, ragerr.New(ragerr.Configuration, "embedding model", err)
			}
			client, err := embedding.NewEmdModel(ctx, cfg.Embedding, hc)
			if err != nil {
				return nil, ragerr.New(ragerr.Configuration, "embedding model", err)
			}
			return embeddings.NewAdapter(client, cfg.VectorStore.Dimension).WithBatchSize(cfg.Embedding.BatchSize), nil
		}),
		LLM: service.Once(func(ctx context.Context) (interfaces.LLM, error) {
			if err := cfg.LLM.Validate(); err != nil {
				return nil, ragerr.New(ragerr.Configuration, "llm", err)
			}
			client, err := llm.NewClient(ctx, cfg.LLM, hc)
			if err != nil {
				return nil, ragerr.New(ragerr.Configuration, "llm", err)
			}
			return llms.NewAdapter(client), nil
		}),
		Loader:   loaders.NewPdfLoader(),
		Splitter: splitters.NewSentenceSplitter(cfg.Ingestion.SentencesPerChunk),
		TopK:     cfg.VectorStore.TopK,
		Info: service.HealthInfo{
			VectorStore: cfg.VectorStore.Provider,
			Collection:  cfg.VectorStore.CollectionName,
			Namespace:   cfg.VectorStore.Namespace,
			Embedding:   cfg.Embedding.Provider + "/" + cfg.Embedding.Model,
			LLM:         cfg.LLM.Provider + "/" + cfg.LLM.Model,
		},
	}
}
