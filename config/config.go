package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		App      App
		HTTP     HTTP
		Log      Log
		Services Services
		Pool     Pool
		Stream   Stream
		Consumer Consumer
		Kafka    Kafka
		Archive  Archive
		Metrics  Metrics
		Swagger  Swagger
	}

	App struct {
		Name        string `env:"APP_NAME" envDefault:"product-composite"`
		Version     string `env:"APP_VERSION" envDefault:"1.0.0"`
		ServiceAddr string `env:"APP_SERVICE_ADDR" envDefault:"product-composite"`
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	Services struct {
		ProductURL        string        `env:"PRODUCT_SERVICE_URL,required"`
		ReviewURL         string        `env:"REVIEW_SERVICE_URL,required"`
		RecommendationURL string        `env:"RECOMMENDATION_SERVICE_URL,required"`
		CallTimeout       time.Duration `env:"SERVICES_CALL_TIMEOUT" envDefault:"2s"`
		StrictJoin        bool          `env:"SERVICES_STRICT_JOIN" envDefault:"false"`
	}

	Pool struct {
		Workers         int           `env:"POOL_WORKERS" envDefault:"8"`
		QueueDepth      int           `env:"POOL_QUEUE_DEPTH" envDefault:"64"`
		ShutdownTimeout time.Duration `env:"POOL_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	// Логические имена топиков отвязаны от физических - физические задаются
	// только конфигом.
	Stream struct {
		Binder                 string        `env:"STREAM_BINDER" envDefault:"memory"` // memory, kafka
		ProductsTopic          string        `env:"STREAM_PRODUCTS_TOPIC" envDefault:"products"`
		ReviewsTopic           string        `env:"STREAM_REVIEWS_TOPIC" envDefault:"reviews"`
		RecommendationsTopic   string        `env:"STREAM_RECOMMENDATIONS_TOPIC" envDefault:"recommendations"`
		DLQSuffix              string        `env:"STREAM_DLQ_SUFFIX" envDefault:".dlq"`
		PartitionCount         int           `env:"STREAM_PARTITION_COUNT" envDefault:"2"`
		PartitionKeyExpression string        `env:"STREAM_PARTITION_KEY_EXPRESSION" envDefault:"key"`
		PublishAttempts        int           `env:"STREAM_PUBLISH_ATTEMPTS" envDefault:"3"`
		PublishInterval        time.Duration `env:"STREAM_PUBLISH_INTERVAL" envDefault:"100ms"`
	}

	Consumer struct {
		Group                  string        `env:"CONSUMER_GROUP" envDefault:"product-composite"`
		MaxAttempts            int           `env:"CONSUMER_MAX_ATTEMPTS" envDefault:"3"`
		BackOffInitialInterval time.Duration `env:"CONSUMER_BACKOFF_INITIAL_INTERVAL" envDefault:"500ms"`
		BackOffMaxInterval     time.Duration `env:"CONSUMER_BACKOFF_MAX_INTERVAL" envDefault:"10s"`
		BackOffMultiplier      float64       `env:"CONSUMER_BACKOFF_MULTIPLIER" envDefault:"2.0"`
		Partitioned            bool          `env:"CONSUMER_PARTITIONED" envDefault:"true"`
		InstanceIndex          int           `env:"CONSUMER_INSTANCE_INDEX" envDefault:"0"`
		InstanceCount          int           `env:"CONSUMER_INSTANCE_COUNT" envDefault:"1"`
		ShutdownTimeout        time.Duration `env:"CONSUMER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	}

	Archive struct {
		Enabled         bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
		PollInterval    time.Duration `env:"ARCHIVE_POLL_INTERVAL" envDefault:"30s"`
		BatchSize       int           `env:"ARCHIVE_BATCH_SIZE" envDefault:"100"`
		ShutdownTimeout time.Duration `env:"ARCHIVE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		PG              PG
		S3              S3
	}

	PG struct {
		Enabled bool   `env:"PG_ENABLED" envDefault:"false"`
		PoolMax int    `env:"PG_POOL_MAX" envDefault:"2"`
		URL     string `env:"PG_URL"`
	}

	S3 struct {
		Enabled        bool          `env:"S3_ENABLED" envDefault:"false"`
		Endpoint       string        `env:"S3_ENDPOINT"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Metrics struct {
		Enabled         bool          `env:"METRICS_ENABLED" envDefault:"false"`
		Port            string        `env:"METRICS_PORT" envDefault:"9090"`
		ShutdownTimeout time.Duration `env:"METRICS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
