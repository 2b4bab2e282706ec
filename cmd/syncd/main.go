package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/provider"
	"app/internal/pubsub"
	"app/internal/quota"
	"app/internal/repository"
	"app/internal/service"
	syncengine "app/internal/sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// syncd is the sync daemon: it runs the tick scheduler, the quota retention
// pruner, and the manual-sync queue consumer in one process.
func main() {
	logger := logger.New()

	// 1. Load environment variables & config
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 2. Initialize DB connection
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// 3. Validate the quota policy before anything spends budget
	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := quota.PolicyFromConfig(cfg)
	if err := policy.Validate(validate); err != nil {
		logger.Fatal().Msgf("Invalid quota policy: %v", err)
	}

	// 4. Initialize Pub/Sub publisher for alerts and tick summaries. Optional:
	// without a project ID the daemon runs with logging only.
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set, Pub/Sub publishing disabled")
	}

	// 5. Resolve the provider API key: env var first, Secret Manager fallback
	apiKey := cfg.YouTubeAPIKey
	if apiKey == "" && cfg.YouTubeAPIKeySecret != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
		}
		apiKey, err = secrets.GetSecret(ctx, cfg.YouTubeAPIKeySecret)
		if err != nil {
			logger.Fatal().Msgf("Failed to resolve API key secret: %v", err)
		}
		secrets.Close()
	}
	if apiKey == "" {
		logger.Fatal().Msg("No YouTube API key configured")
	}
	ytClient, err := provider.NewYouTubeClient(ctx, apiKey)
	if err != nil {
		logger.Fatal().Msgf("Failed to create YouTube client: %v", err)
	}

	// 6. Optional thumbnail mirror (S3-compatible storage)
	var thumbs syncengine.ThumbnailMirror
	if cfg.ThumbnailMirrorEnabled {
		s3Config, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			logger.Fatal().Msgf("Failed to load S3 config: %v", err)
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		})
		thumbs = service.NewThumbnailService(s3Client, cfg.S3Bucket, logger)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("Thumbnail mirroring enabled")
	}

	// 7. Repositories, tracker, and the sync engine
	quotaRepo := repository.NewQuotaRepo(pool)
	stateRepo := repository.NewSyncStateRepo(pool)
	sourceRepo := repository.NewSourceRepo(pool)
	contentRepo := repository.NewContentRepo(pool)

	tracker := quota.NewTracker(quotaRepo, policy, publisher, cfg.QuotaAlertTopic, logger)
	pipeline := syncengine.NewPipeline(ytClient, contentRepo, tracker, thumbs, cfg.SyncPageSize, logger)
	orch := syncengine.NewOrchestrator(
		sourceRepo,
		stateRepo,
		pipeline,
		ytClient,
		tracker,
		time.Duration(cfg.SyncClaimTTLMin)*time.Minute,
		logger,
	)
	scheduler := syncengine.NewScheduler(orch, sourceRepo, tracker, publisher, cfg.SyncSummaryTopic, syncengine.SchedulerConfig{
		Provider:  model.ProviderYouTube,
		Interval:  time.Duration(cfg.SyncIntervalMin) * time.Minute,
		BatchSize: cfg.SyncBatchSize,
	}, logger)
	pruner := syncengine.NewPruner(
		quotaRepo,
		time.Duration(cfg.QuotaRetentionDays)*24*time.Hour,
		time.Duration(cfg.PruneIntervalHrs)*time.Hour,
		logger,
	)

	go scheduler.Start(ctx)
	go pruner.Start(ctx)

	// 8. Consume manual sync requests in the foreground until shutdown
	pgmqClient := pgmq.New(pool)
	logger.Info().Str("queue", cfg.ManualSyncQueueName).Msg("Consuming manual sync requests")
	consumeManualSyncs(ctx, cfg, pgmqClient, orch, logger)

	logger.Info().Msg("Sync daemon stopped gracefully")
}

type manualSyncRequest struct {
	SourceID string `json:"source_id"`
}

// consumeManualSyncs polls the pgmq queue and runs one sync per message.
// Messages are deleted once handled; a malformed payload is dropped, a failed
// sync is logged and dropped too since the scheduler retries the source on
// the next tick anyway.
func consumeManualSyncs(ctx context.Context, cfg *config.Config, client *pgmq.Client, orch *syncengine.Orchestrator, logger zerolog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := client.ReadWithPoll(ctx, cfg.ManualSyncQueueName, cfg.ManualSyncPollTimeout, cfg.ManualSyncPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Failed to read manual sync queue")
			time.Sleep(5 * time.Second)
			continue
		}
		for _, msg := range msgs {
			var req manualSyncRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.SourceID == "" {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Dropping malformed manual sync message")
			} else {
				logger.Info().Str("source_id", req.SourceID).Int64("msg_id", msg.ID).Msg("Running manual sync")
				if err := orch.SyncOneSource(ctx, req.SourceID); err != nil {
					logger.Error().Err(err).Str("source_id", req.SourceID).Msg("Manual sync failed")
				}
			}
			if err := client.Delete(ctx, cfg.ManualSyncQueueName, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to delete manual sync message")
			}
		}
	}
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services. See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
