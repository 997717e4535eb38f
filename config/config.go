package config

import (
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string            `mapstructure:"env"`
	LogLevel           string            `mapstructure:"log_level"`
	LogType            string            `mapstructure:"log_type"`
	ServiceName        string            `mapstructure:"service_name"`
	Port               string            `mapstructure:"port"`
	Version            string            `mapstructure:"version"`
	HttpServerSettings *HttpServerConfig `mapstructure:"http_server"`
	WorkerSettings     *WorkerConfig     `mapstructure:"worker"`
	BrowserSettings    *BrowserConfig    `mapstructure:"browser"`
	CacheSettings      *CacheConfig      `mapstructure:"cache"`
	DbSettings         *DatabaseConfig   `mapstructure:"database"`
	KafkaSettings      *KafkaConfig      `mapstructure:"kafka"`
	S3Settings         *S3Config         `mapstructure:"s3"`
	TelemetrySettings  *TelemetryConfig  `mapstructure:"telemetry"`
}

type HttpServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WorkerConfig struct {
	WorkersNum int `mapstructure:"workers_num"`
}

type BrowserConfig struct {
	RemoteURL             string        `mapstructure:"remote_url"`
	ExecPath              string        `mapstructure:"exec_path"`
	UserAgent             string        `mapstructure:"user_agent"`
	NoSandbox             bool          `mapstructure:"no_sandbox"`
	MaxTabs               int64         `mapstructure:"max_tabs"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	ViewportWidth         int64         `mapstructure:"viewport_width"`
	ViewportHeight        int64         `mapstructure:"viewport_height"`
	TlsInsecureSkipVerify bool          `mapstructure:"tls_insecure_skip_verify"`
}

type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Servers   []string      `mapstructure:"servers"`
	Ttl       time.Duration `mapstructure:"ttl"`
	ForcedTtl time.Duration `mapstructure:"forced_ttl"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Enabled  bool            `mapstructure:"enabled"`
	Producer *ProducerConfig `mapstructure:"producer"`
	Consumer *ConsumerConfig `mapstructure:"consumer"`
}

type ProducerConfig struct {
	Addr                []string      `mapstructure:"addr"`
	WriteTopicName      string        `mapstructure:"write_topic_name"`
	DeadLetterTopicName string        `mapstructure:"dlq_topic_name"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BatchSize           int           `mapstructure:"batch_size"`
	BatchTimeout        time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	RequiredAsks        int           `mapstructure:"required_acks"`
	Async               bool          `mapstructure:"async"`
}

type ConsumerConfig struct {
	ReadTopicName    string        `mapstructure:"read_topic_name"`
	Brokers          []string      `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	MaxWait          time.Duration `mapstructure:"max_wait"`
	ReadBatchTimeout time.Duration `mapstructure:"read_batch_timeout"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	MaxBytes         int           `mapstructure:"max_bytes"`
	CommitInterval   time.Duration `mapstructure:"commit_interval"`
}

type S3Config struct {
	AwsBaseEndpoint  string        `mapstructure:"aws_base_endpoint"`
	Region           string        `mapstructure:"region"`
	BucketName       string        `mapstructure:"bucket_name"`
	ScreenshotPrefix string        `mapstructure:"screenshot_prefix"`
	DownloadPrefix   string        `mapstructure:"download_prefix"`
	PresignExpires   time.Duration `mapstructure:"presign_expires"`
	PresignCacheTtl  time.Duration `mapstructure:"presign_cache_ttl"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CollectorUrl string `mapstructure:"collector_url"`
}

func MustLoad() *Config {
	dir := os.Getenv("CONFIG_PATH")
	if dir == "" {
		dir = path.Join(".")
	}
	cfg, err := Load(dir)
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return cfg
}

// Load reads config.yaml from dir. Environment variables override file values,
// e.g. S3_BUCKET_NAME overrides s3.bucket_name.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_type", "text")
	v.SetDefault("service_name", "page-capture")
	v.SetDefault("port", "8080")
	v.SetDefault("http_server.read_timeout", 15*time.Second)
	v.SetDefault("http_server.write_timeout", 90*time.Second)
	v.SetDefault("http_server.shutdown_timeout", 30*time.Second)
	v.SetDefault("worker.workers_num", 2)
	v.SetDefault("browser.max_tabs", 4)
	v.SetDefault("browser.request_timeout", 60*time.Second)
	v.SetDefault("browser.viewport_width", 1000)
	v.SetDefault("browser.viewport_height", 600)
	v.SetDefault("browser.tls_insecure_skip_verify", true)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.forced_ttl", time.Minute)
	v.SetDefault("s3.screenshot_prefix", "screenshots")
	v.SetDefault("s3.download_prefix", "downloads")
	v.SetDefault("s3.presign_expires", time.Hour)
	v.SetDefault("s3.presign_cache_ttl", 5*time.Minute)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.consumer.max_wait", time.Second)
	v.SetDefault("kafka.consumer.commit_interval", time.Second)
	v.SetDefault("kafka.producer.batch_size", 100)
	v.SetDefault("kafka.producer.batch_timeout", time.Second)
	v.SetDefault("kafka.producer.max_attempts", 3)
	v.SetDefault("kafka.producer.required_acks", 1)
}
