package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI              string
	Database         string
	ObjectsDatabase  string
	ImagesCollection string
	ConnectTimeout   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BlobConfig selects and configures the binary store. Driver is either
// "fileserver" (remote HTTP file service) or "minio".
type BlobConfig struct {
	Driver        string
	FileServerURL string
	Timeout       time.Duration
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
}

type SecurityConfig struct {
	JWTSecret     string
	DefaultTenant string
}

type UploadConfig struct {
	MaxBytes int64
}

type SweepConfig struct {
	Schedule    string
	GracePeriod time.Duration
	BatchSize   int
	LedgerKey   string
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Mongo            MongoConfig
	Redis            RedisConfig
	Blob             BlobConfig
	Security         SecurityConfig
	Upload           UploadConfig
	Sweep            SweepConfig
	Worker           WorkerConfig
	Tracing          TracingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("OBJIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Blob.Driver {
	case "fileserver":
		if c.Blob.FileServerURL == "" {
			return fmt.Errorf("blob.fileserverurl is required for the fileserver driver")
		}
	case "minio":
		if c.Blob.Endpoint == "" || c.Blob.Bucket == "" {
			return fmt.Errorf("blob.endpoint and blob.bucket are required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.maxbytes must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "images")
	v.SetDefault("mongo.objectsdatabase", "objects")
	v.SetDefault("mongo.imagescollection", "images")
	v.SetDefault("mongo.connecttimeout", "10s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("blob.driver", "fileserver")
	v.SetDefault("blob.fileserverurl", "http://localhost:4567")
	v.SetDefault("blob.timeout", "30s")
	v.SetDefault("blob.bucket", "object-images")
	v.SetDefault("blob.usessl", false)
	v.SetDefault("blob.region", "us-east-1")

	v.SetDefault("upload.maxbytes", 20000000)

	v.SetDefault("sweep.schedule", "0 */15 * * * *")
	v.SetDefault("sweep.graceperiod", "10m")
	v.SetDefault("sweep.batchsize", 100)
	v.SetDefault("sweep.ledgerkey", "blob:pending")

	v.SetDefault("worker.stream", "images:tasks")
	v.SetDefault("worker.group", "image-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.servicename", "object-image-server")
}
