package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	DBHost      string `envconfig:"DB_HOST" required:"true"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" required:"true"`
	DBPassword  string `envconfig:"DB_PASSWORD" required:"true"`
	DBName      string `envconfig:"DB_NAME" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// GCP settings (Pub/Sub alerts, Secret Manager)
	GCPProjectID        string `envconfig:"GCP_PROJECT_ID"`
	QuotaAlertTopic     string `envconfig:"PUBSUB_QUOTA_ALERT_TOPIC" default:"quota-alerts"`
	SyncSummaryTopic    string `envconfig:"PUBSUB_SYNC_SUMMARY_TOPIC" default:"sync-summaries"`
	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	YouTubeAPIKeySecret string `envconfig:"YOUTUBE_API_KEY_SECRET_NAME"` // Secret Manager fallback when YOUTUBE_API_KEY is unset

	// Thumbnail mirror (S3-compatible storage)
	ThumbnailMirrorEnabled bool   `envconfig:"THUMBNAIL_MIRROR_ENABLED" default:"false"`
	S3URL                  string `envconfig:"S3_URL"`
	S3Bucket               string `envconfig:"S3_BUCKET"`
	S3Region               string `envconfig:"S3_REGION"`
	S3AccessKey            string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey            string `envconfig:"S3_SECRET_KEY"`

	// Sync scheduler settings
	SyncIntervalMin  int `envconfig:"SYNC_INTERVAL_MIN" default:"60"`
	SyncBatchSize    int `envconfig:"SYNC_BATCH_SIZE" default:"10"`
	SyncPageSize     int `envconfig:"SYNC_PAGE_SIZE" default:"50"`
	SyncClaimTTLMin  int `envconfig:"SYNC_CLAIM_TTL_MIN" default:"30"`
	PruneIntervalHrs int `envconfig:"QUOTA_PRUNE_INTERVAL_HOURS" default:"24"`

	// Quota policy. Thresholds are fractions of the daily limit; operation
	// costs are local defaults, not provider-guaranteed truth.
	QuotaDailyLimit        int     `envconfig:"QUOTA_DAILY_LIMIT" default:"10000"`
	QuotaWarningThreshold  float64 `envconfig:"QUOTA_WARNING_THRESHOLD" default:"0.8"`
	QuotaCriticalThreshold float64 `envconfig:"QUOTA_CRITICAL_THRESHOLD" default:"0.95"`
	QuotaRetentionDays     int     `envconfig:"QUOTA_RETENTION_DAYS" default:"30"`
	QuotaCostListItems     int     `envconfig:"QUOTA_COST_LIST_ITEMS" default:"1"`
	QuotaCostItemDetails   int     `envconfig:"QUOTA_COST_ITEM_DETAILS" default:"1"`
	QuotaCostSearch        int     `envconfig:"QUOTA_COST_SEARCH" default:"100"`
	QuotaCostSourceInfo    int     `envconfig:"QUOTA_COST_SOURCE_INFO" default:"1"`

	// Manual sync queue (pgmq)
	ManualSyncQueueName   string `envconfig:"MANUAL_SYNC_QUEUE_NAME" default:"manual_sync_queue"`
	ManualSyncPollTimeout int    `envconfig:"MANUAL_SYNC_POLL_TIMEOUT_SEC" default:"30"`
	ManualSyncPollMaxMsg  int    `envconfig:"MANUAL_SYNC_POLL_MAX_MSG" default:"1"`
	ProviderTimeoutSec    int    `envconfig:"PROVIDER_REQUEST_TIMEOUT_SEC" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN builds the Postgres connection string from the DB_* settings.
func (c *Config) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
	if c.Environment == "development" {
		dsn += " sslmode=disable"
	}
	return dsn
}
