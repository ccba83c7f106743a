package main

import (
	"context"
	"fmt"
	"time"

	awsclient "interview-evaluator/internal/common/aws"
	"interview-evaluator/internal/common/camunda"
	"interview-evaluator/internal/common/config"
	"interview-evaluator/internal/common/database"
	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/observability"
	"interview-evaluator/internal/events"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
	"interview-evaluator/internal/orchestrator"
	"interview-evaluator/internal/store"
	"interview-evaluator/internal/workers/base"
	"interview-evaluator/internal/workers/evaluation/aggregate"
	"interview-evaluator/internal/workers/modality/coding"
	"interview-evaluator/internal/workers/modality/engagement"
	"interview-evaluator/internal/workers/modality/reasoning"
	"interview-evaluator/internal/workers/modality/speech"

	"go.uber.org/zap"
)

// app holds the connections and the orchestrator shared by serve and
// evaluate.
type app struct {
	cfg    *config.Config
	zap    *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	pg     *database.PostgresClient
	redis  *database.RedisClient
	orch   *orchestrator.Orchestrator
	zeebe  *camunda.Client
	closer []func()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	a := &app{cfg: cfg, zap: zapLog, log: log, obs: observability.New(cfg.App.Name)}
	a.closer = append(a.closer, a.obs.Shutdown)

	err := retryWithBackoff(func() error {
		var err error
		a.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return a.pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closer = append(a.closer, func() { _ = a.pg.Close() })
	log.Info("PostgreSQL connected successfully", nil)

	err = retryWithBackoff(func() error {
		var err error
		a.redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return a.redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closer = append(a.closer, func() { _ = a.redis.Close() })
	log.Info("Redis connected successfully", nil)

	deps := orchestrator.Dependencies{
		Guard:         store.NewRunGuard(a.redis.Client, config.GetDuration(cfg.Pipeline.HardTimeout)),
		Observability: a.obs,
	}

	if cfg.Database.Elasticsearch.Enabled {
		index, err := a.newIndex(ctx)
		if err != nil {
			// Search is a mirror of Postgres; evaluations still get written.
			log.Warn("evaluation index disabled", map[string]interface{}{"error": err.Error()})
		} else {
			deps.Index = index
		}
	}

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Events = publisher

	generator, err := narrative.FromConfig(ctx, cfg.Narrative, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("narrative providers configured", map[string]interface{}{"providers": generator.Providers()})

	pgStore := store.NewPostgresStore(a.pg.DB, log)
	registry, err := a.newRegistry(pgStore, generator)
	if err != nil {
		a.Close()
		return nil, err
	}

	aggCfg := aggregate.LoadConfig()
	aggCfg.NarrativeBudget = config.GetDuration(cfg.Pipeline.NarrativeBudget)
	aggCfg.AgentVersion = cfg.App.Version

	deps.Store = pgStore
	deps.Aggregator = aggregate.NewHandler(aggCfg, pgStore, generator, log)

	orchCfg := orchestrator.LoadConfig()
	orchCfg.HardTimeout = config.GetDuration(cfg.Pipeline.HardTimeout)
	orchCfg.SoftTimeout = config.GetDuration(cfg.Pipeline.SoftTimeout)
	orchCfg.QueueSize = cfg.Pipeline.QueueSize
	orchCfg.Concurrency = cfg.Pipeline.Concurrency

	a.orch, err = orchestrator.New(orchCfg, registry, deps, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) newIndex(ctx context.Context) (*store.EvaluationIndex, error) {
	var es *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(a.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 5, 2*time.Second, a.log, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}

	index := store.NewEvaluationIndex(es.Client, a.cfg.Database.Elasticsearch.Index, a.log)
	if err := index.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	a.log.Info("Elasticsearch connected successfully", nil)
	return index, nil
}

func (a *app) newPublisher(ctx context.Context) (events.Publisher, error) {
	var sinks events.MultiPublisher
	if a.cfg.Events.RedisEnabled {
		sinks = append(sinks, events.NewRedisPublisher(a.redis.Client, a.cfg.Events.ChannelPrefix, a.log))
	}
	if sns := a.cfg.Events.SNS; sns.Enabled {
		client, err := awsclient.NewSNSClient(ctx, sns.Region, sns.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("sns events: %w", err)
		}
		sinks = append(sinks, events.NewSNSPublisher(client, a.log))
	}
	if len(sinks) == 0 {
		return events.NopPublisher{}, nil
	}
	return sinks, nil
}

func (a *app) newRegistry(pgStore *store.PostgresStore, narrator base.Narrator) (*orchestrator.Registry, error) {
	budget := config.GetDuration(a.cfg.Pipeline.NarrativeBudget)

	codingCfg := coding.LoadConfig()
	codingCfg.NarrativeBudget = budget
	speechCfg := speech.LoadConfig()
	speechCfg.NarrativeBudget = budget
	engagementCfg := engagement.LoadConfig()
	engagementCfg.NarrativeBudget = budget
	reasoningCfg := reasoning.LoadConfig()
	reasoningCfg.NarrativeBudget = budget

	all := map[models.WorkerKind]base.Worker{
		models.KindCoding:     coding.NewHandler(codingCfg, pgStore, narrator, a.log),
		models.KindSpeech:     speech.NewHandler(speechCfg, pgStore, narrator, a.log),
		models.KindEngagement: engagement.NewHandler(engagementCfg, pgStore, narrator, a.log),
		models.KindReasoning:  reasoning.NewHandler(reasoningCfg, pgStore, narrator, a.log),
	}

	var enabled []base.Worker
	for _, kind := range models.ModalityKinds {
		if !config.IsWorkerEnabled(a.cfg, kind.String()) {
			a.log.Info("worker disabled", map[string]interface{}{"workerKind": kind.String()})
			continue
		}
		enabled = append(enabled, all[kind])
	}
	return orchestrator.NewRegistry(enabled...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	_ = a.zap.Sync()
}
