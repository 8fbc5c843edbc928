package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	API        APIConfig              `yaml:"api"`
	Storage    StorageConfig          `yaml:"storage"`
	Live       LiveConfig             `yaml:"live"`
	Notify     NotifyConfig           `yaml:"notify"`
	Scan       ScanConfig             `yaml:"scan"`
	Log        LogConfig              `yaml:"log"`
	Strategies map[string]RawStrategy `yaml:"strategies"`
	Groups     map[string][]string    `yaml:"groups"`
}

// APIConfig contiene los base URLs de las APIs y las credenciales de trading.
type APIConfig struct {
	CLOBBase   string `yaml:"clob_base"`
	GammaBase  string `yaml:"gamma_base"`
	PrivateKey string `yaml:"-"` // solo desde POLY_PRIVATE_KEY
	RPCURL     string `yaml:"rpc_url"`
}

// StorageConfig elige el backend donde se persiste el estado.
type StorageConfig struct {
	Backend string      `yaml:"backend"` // file | sqlite | redis | s3
	Dir     string      `yaml:"dir"`     // backend file
	DSN     string      `yaml:"dsn"`     // backend sqlite: ruta o ":memory:"
	Redis   RedisConfig `yaml:"redis"`
	S3      S3Config    `yaml:"s3"`

	// Lock serializa los ciclos con un lock en Redis aunque el backend sea otro.
	Lock bool `yaml:"lock"`
}

// RedisConfig conexión a Redis (backend de estado y lock de ciclo).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

// S3Config bucket donde se guardan los documentos de estado.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // MinIO / R2; vacío = AWS
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// LiveConfig controla el gateway de propuestas y la ejecución real.
type LiveConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Shadow             bool    `yaml:"shadow"`
	ProposalTTLHours   float64 `yaml:"proposal_ttl_hours"`
	MaxTradesPerBatch  int     `yaml:"max_trades_per_batch"`
	MaxPriceDivergence float64 `yaml:"max_price_divergence"`
	MinBalanceUSDC     float64 `yaml:"min_balance_usdc"`
}

// NotifyConfig destinos de las notificaciones.
type NotifyConfig struct {
	Console  bool           `yaml:"console"`
	Events   []string       `yaml:"events"` // proposal | execution | summary; vacío = todos
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig credenciales del bot de Telegram.
type TelegramConfig struct {
	Token  string `yaml:"-"`
	ChatID string `yaml:"chat_id"`
}

// Enabled indica si hay credenciales suficientes para enviar.
func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != "" }

// ScanConfig controla el scan de mercados.
type ScanConfig struct {
	Workers int    `yaml:"workers"` // clasificación concurrente; 0 = NumCPU×2
	Cron    string `yaml:"cron"`    // expresión por defecto de `geobot schedule`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un path vacío usa solo defaults y entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// ProposalTTL devuelve el TTL de propuestas como time.Duration.
func (c *Config) ProposalTTL() time.Duration {
	return time.Duration(c.Live.ProposalTTLHours * float64(time.Hour))
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	flag("LIVE_TRADING_ENABLED", &cfg.Live.Enabled)
	flag("LIVE_SHADOW_MODE", &cfg.Live.Shadow)
	str("POLY_PRIVATE_KEY", &cfg.API.PrivateKey)
	str("POLYGON_RPC_URL", &cfg.API.RPCURL)
	str("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.Token)
	str("TELEGRAM_CHAT_ID", &cfg.Notify.Telegram.ChatID)
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("REDIS_ADDR", &cfg.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Redis.DB = n
		}
	}
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("S3_REGION", &cfg.Storage.S3.Region)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.Storage.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.Storage.S3.SecretKey)
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.RPCURL == "" {
		cfg.API.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "geobot.db"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Live.ProposalTTLHours <= 0 {
		cfg.Live.ProposalTTLHours = 6
	}
	if cfg.Live.MaxTradesPerBatch <= 0 {
		cfg.Live.MaxTradesPerBatch = 5
	}
	if cfg.Live.MaxPriceDivergence <= 0 {
		cfg.Live.MaxPriceDivergence = 0.03
	}
	if cfg.Live.MinBalanceUSDC <= 0 {
		cfg.Live.MinBalanceUSDC = 5
	}
	if cfg.Scan.Cron == "" {
		cfg.Scan.Cron = "0 0 */4 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "redis":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for _, e := range c.Notify.Events {
		switch e {
		case "proposal", "execution", "summary":
		default:
			return fmt.Errorf("unknown notify event %q", e)
		}
	}
	return nil
}
