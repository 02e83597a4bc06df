package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"bibleai-be/internal/config"
	"bibleai-be/internal/controller"
	"bibleai-be/internal/model"
	"bibleai-be/internal/pkg/logger"
	"bibleai-be/internal/repository/contract"
	"bibleai-be/internal/repository/implementation"
	"bibleai-be/internal/repository/memory"
	redisrepo "bibleai-be/internal/repository/redis"
	"bibleai-be/internal/repository/sqlite"
	"bibleai-be/internal/service"
	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/corpus"
	"bibleai-be/pkg/database"
	"bibleai-be/pkg/embedding"
	"bibleai-be/pkg/esv"
	"bibleai-be/pkg/llm/factory"
	pktNats "bibleai-be/pkg/nats"
	ragcontext "bibleai-be/pkg/rag/context"
	"bibleai-be/pkg/rag/executor"
	"bibleai-be/pkg/rag/hybrid"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/rag/response"
	"bibleai-be/pkg/rag/search"
	"bibleai-be/pkg/rag/session"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/vectorindex"
	vmemory "bibleai-be/pkg/vectorindex/memory"
	"bibleai-be/pkg/vectorindex/qdrant"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Controllers
	ChatController      controller.IChatController
	ScriptureController controller.IScriptureController

	// Services
	ChatService      service.IChatService
	ScriptureService service.IScriptureService
	AnalyticsService service.IAnalyticsService

	// Engine and background work (run by main)
	Engine   *executor.Engine
	Sessions *session.Manager
	Loader   *corpus.Loader

	closers []func(ctx context.Context) error
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c.Logger = sysLogger
	// stdout sync errors are expected on terminals
	c.onClose(func(context.Context) error { _ = sysLogger.Sync(); return nil })

	// 2. Storage
	var gormDB *gorm.DB
	openGorm := func() (*gorm.DB, error) {
		if gormDB != nil {
			return gormDB, nil
		}
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to postgres: %w", err)
		}
		if err := database.Migrate(db, &model.Verse{}, &model.VerseEmbedding{}); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		gormDB = db
		return db, nil
	}

	var verses contract.VerseRepository
	switch cfg.Database.Driver {
	case "", "memory":
		verses = memory.NewVerseRepository()
	case "sqlite":
		repo, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite verse store: %w", err)
		}
		c.onClose(func(context.Context) error { return repo.Close() })
		verses = repo
	case "postgres":
		db, err := openGorm()
		if err != nil {
			return nil, err
		}
		verses = implementation.NewVerseRepository(db)
	default:
		return nil, fmt.Errorf("unsupported verse store: %s", cfg.Database.Driver)
	}
	sysLogger.Info("BOOTSTRAP", "Verse store ready", map[string]interface{}{"driver": cfg.Database.Driver})

	var vectors vectorindex.VectorIndex
	switch cfg.Vector.Backend {
	case "", "memory":
		vectors = vmemory.New()
	case "qdrant":
		client, err := qdrant.New(qdrant.Config{
			URL:            fmt.Sprintf("http://%s:%d", cfg.Vector.QdrantHost, cfg.Vector.QdrantPort),
			CollectionName: cfg.Vector.QdrantCollection,
			APIKey:         cfg.Vector.QdrantAPIKey,
			Dimension:      cfg.Vector.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		vectors = client
	case "pgvector":
		db, err := openGorm()
		if err != nil {
			return nil, err
		}
		vectors = implementation.NewVerseEmbeddingRepository(db)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
	c.onClose(func(context.Context) error { return vectors.Close() })
	sysLogger.Info("BOOTSTRAP", "Vector index ready", map[string]interface{}{"backend": vectors.Name()})

	// 3. AI Providers
	embedder, err := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel, cfg.Ai.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" && (cfg.Ai.LLMProvider == "" || cfg.Ai.LLMProvider == "ollama") {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL, cfg.Ai.HuggingFaceAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "AI providers ready", map[string]interface{}{
		"embedding": cfg.Ai.EmbeddingProvider,
		"llm":       cfg.Ai.LLMProvider,
		"model":     llmProvider.ModelName(),
	})

	// 4. Sessions
	var snapshots session.Snapshots
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}

		bus, err := session.NewSnapshotBus(
			redisrepo.NewSessionSnapshotRepository(rdb, cfg.Session.SnapshotTTL),
			session.NewGoChannel(),
			0,
			sysLogger.Std("SNAPSHOT"),
		)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		// the bus drains before the client goes away
		c.onClose(func(context.Context) error { return rdb.Close() })
		c.onClose(bus.Close)
		snapshots = bus
	}

	c.Sessions = session.NewManager(memory.NewSessionRepository(), snapshots, session.Config{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
	}, sysLogger.Std("SESSION"))

	// 5. Event Bus
	var publisher executor.EventPublisher
	var source service.EventSource
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.onClose(func(context.Context) error { natsPub.Close(); return nil })
			publisher = natsPub
		}

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.onClose(func(context.Context) error { natsSub.Close(); return nil })
			source = natsSub
		}
	}

	// 6. Engine
	searchPolicy := retry.DefaultPolicy(cfg.Rag.SearchTimeout)
	searchPolicy.Attempts = cfg.Rag.RetryAttempts
	generationPolicy := retry.DefaultPolicy(cfg.Rag.GenerationTimeout)
	generationPolicy.Attempts = cfg.Rag.RetryAttempts

	var fetcher executor.PassageFetcher
	if cfg.Ai.ESVAPIKey != "" {
		fetcher = esv.NewClient(cfg.Ai.ESVAPIKey, cfg.Ai.ESVBaseURL)
		sysLogger.Info("BOOTSTRAP", "ESV display text enabled", map[string]interface{}{"base_url": cfg.Ai.ESVBaseURL})
	}

	semantic := search.NewOrchestrator(search.NewEmbeddingIndex(embedder, vectors), verses, sysLogger.Std("SEARCH"))
	assembler := response.NewAssembler(
		llmProvider,
		prompt.NewBuilder(cfg.Rag.HistoryWindow),
		c.Sessions,
		response.Config{MaxSources: cfg.Rag.MaxSources, Policy: generationPolicy},
		sysLogger.Std("ASSEMBLER"),
	)

	c.Engine = executor.NewEngine(executor.Deps{
		Sessions:  c.Sessions,
		Retriever: hybrid.NewRetriever(semantic, verses, sysLogger.Std("HYBRID")),
		Router:    router.NewModeRouter(cfg.Rag.ConfidenceThreshold, sysLogger.Std("ROUTER")),
		Expander: ragcontext.NewExpander(verses, ragcontext.Options{
			Window:     cfg.Rag.ContextWindow,
			ExpandTopN: cfg.Rag.ExpandTopN,
		}, sysLogger.Std("EXPANDER")),
		Assembler: assembler,
		Verses:    verses,
		Vectors:   vectors,
		Events:    publisher,
		Fetcher:   fetcher,
		Model:     llmProvider.ModelName(),
	}, executor.Config{
		TopK:           cfg.Rag.TopK,
		MaxExactVerses: cfg.Rag.MaxExactVerses,
		SearchPolicy:   searchPolicy,
	}, sysLogger.Std("ENGINE"))

	c.Loader = corpus.NewLoader(verses, embedder, vectors, sysLogger.Std("CORPUS"))

	// 7. Services
	c.ChatService = service.NewChatService(c.Engine, sysLogger)
	c.ScriptureService = service.NewScriptureService(c.Engine, sysLogger)
	c.AnalyticsService = service.NewAnalyticsService(source, sysLogger)

	// 8. Controllers
	c.ChatController = controller.NewChatController(c.ChatService)
	c.ScriptureController = controller.NewScriptureController(c.ScriptureService, c.AnalyticsService)

	return c, nil
}

// LoadCorpus ingests the configured manifest. An empty path leaves the store as it is.
func (c *Container) LoadCorpus(ctx context.Context) (*corpus.Stats, error) {
	if c.Config.Corpus.ManifestPath == "" {
		return &corpus.Stats{}, nil
	}
	m, err := corpus.LoadManifest(c.Config.Corpus.ManifestPath)
	if err != nil {
		return nil, err
	}
	stats, err := c.Loader.Load(ctx, m)
	if err != nil {
		return stats, err
	}
	c.Logger.Info("CORPUS", "Corpus loaded", map[string]interface{}{
		"verses":   stats.Verses,
		"embedded": stats.Embedded,
		"skipped":  stats.Skipped,
	})
	return stats, nil
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func(ctx context.Context) error) {
	c.closers = append(c.closers, fn)
}
