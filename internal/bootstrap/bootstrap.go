package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/claim-verifier/internal/config"
	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
	"github.com/kirillkom/claim-verifier/internal/core/usecase"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/cache"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/chunking"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/embedding/openai"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/extractor"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/ollama"
	natsqueue "github.com/kirillkom/claim-verifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/resilience"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/claim-verifier/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue        ports.MessageQueue
	EvidenceRepo ports.EvidenceRepository
	IngestUC     ports.EvidenceIngestor
	ProcessUC    ports.EvidenceProcessor
	VerifyUC     *usecase.VerifyClaimUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	evidenceRepo := postgres.NewEvidenceRepository(db)
	if err := evidenceRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure evidence schema: %w", err)
	}
	verificationRepo := postgres.NewVerificationRepository(db)
	if err := verificationRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure verification schema: %w", err)
	}
	keywordIndex := postgres.NewKeywordIndex(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSEvidenceSubject, cfg.NATSClaimSubject, natsqueue.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), natsqueue.ClassifyError),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaNLIModel, cfg.OllamaEmbedModel)
	embedder := buildEmbedder(cfg, ollamaClient)
	nliVerifier := ollama.NewVerifier(ollamaClient)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.PassageSize, cfg.SentenceOverlap)
	textExtractor := extractor.NewComposite(storage)
	resultCache := cache.NewResultCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, 0)

	verifyUC := usecase.NewVerifyClaimUseCase(
		usecase.VerifyDeps{
			Embedder:     embedder,
			VectorIndex:  vectorIndex,
			KeywordIndex: keywordIndex,
			NLI:          nliVerifier,
			Store:        verificationRepo,
			Cache:        resultCache,

			EmbedRetry:    resilience.NewExecutor(resilience.EmbeddingPolicy(), resilience.TransientClassifier),
			RetrieveRetry: resilience.NewExecutor(resilience.RetrievalPolicy(), resilience.TransientClassifier),
			NLIRetry:      resilience.NewExecutor(resilience.NLIPolicy(), resilience.TransientClassifier),
		},
		verifyConfig(cfg),
		logger,
	)

	ingestUC := usecase.NewIngestEvidenceUseCase(evidenceRepo, storage, queue)
	processUC := usecase.NewProcessEvidenceUseCase(evidenceRepo, textExtractor, chunker, embedder, vectorIndex, keywordIndex)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:        queue,
		EvidenceRepo: evidenceRepo,
		IngestUC:     ingestUC,
		ProcessUC:    processUC,
		VerifyUC:     verifyUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildEmbedder(cfg config.Config, ollamaClient *ollama.Client) ports.Embedder {
	if cfg.EmbeddingProvider == "openai" && cfg.OpenAIAPIKey != "" {
		return openai.NewEmbedder(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIEmbedModel,
			Dimensions: cfg.OpenAIEmbedDimensions,
		})
	}
	return ollama.NewEmbedder(ollamaClient)
}

func verifyConfig(cfg config.Config) usecase.VerifyConfig {
	out := usecase.DefaultVerifyConfig()
	out.Fusion = usecase.FusionConfig{
		K:              cfg.FusionRRFK,
		VectorWeight:   cfg.VectorWeight,
		KeywordWeight:  cfg.KeywordWeight,
		CandidateLimit: cfg.HybridCandidates,
	}
	out.Aggregation = usecase.AggregationConfig{
		MinConfidence:     cfg.MinConfidence,
		HighConfidence:    cfg.HighConfidence,
		ConflictThreshold: cfg.ConflictThreshold,
	}
	if strategy := domain.AggregationStrategy(cfg.AggregationStrategy); strategy.Valid() {
		out.DefaultStrategy = strategy
	}
	if cfg.VerifyTimeoutSeconds > 0 {
		out.DefaultTimeout = time.Duration(cfg.VerifyTimeoutSeconds) * time.Second
	}
	out.SingleFlight = cfg.SingleFlight
	out.DropFailedNLIPairs = cfg.DropFailedNLIPairs
	return out
}
