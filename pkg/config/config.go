package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Admin struct {
		BearerToken string `mapstructure:"BEARER_TOKEN"`
	} `mapstructure:"ADMIN"`
	// Providers maps an offerwall network name (lower-case) to its
	// integration settings. Missing secret means signature validation is
	// skipped for that provider, which is only acceptable outside production.
	Providers map[string]Provider `mapstructure:"PROVIDERS"`
	Rewards   Rewards             `mapstructure:"REWARDS"`
}

type Provider struct {
	Secret string `mapstructure:"SECRET"`
	// Signature overrides let the hashing recipe be corrected from provider
	// documentation without a code change.
	SignatureParam  string   `mapstructure:"SIGNATURE_PARAM"`
	SignatureFields []string `mapstructure:"SIGNATURE_FIELDS"`
	SignatureAlgo   string   `mapstructure:"SIGNATURE_ALGO"`
	SignatureSep    string   `mapstructure:"SIGNATURE_SEP"`
}

type Rewards struct {
	AdBaseReward     int64             `mapstructure:"AD_BASE_REWARD"`
	AdDailyCap       int64             `mapstructure:"AD_DAILY_CAP"`
	TournamentWeight map[string]int64  `mapstructure:"TOURNAMENT_WEIGHT"`
	HappyHours       []HappyHourWindow `mapstructure:"HAPPY_HOURS"`
}

type HappyHourWindow struct {
	Start      string  `mapstructure:"START"` // "18:00"
	End        string  `mapstructure:"END"`   // "20:00"
	Multiplier float64 `mapstructure:"MULTIPLIER"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Rewards.AdBaseReward == 0 {
		cfg.Rewards.AdBaseReward = 5
	}
	if cfg.Rewards.AdDailyCap == 0 {
		cfg.Rewards.AdDailyCap = 10
	}
	if cfg.Rewards.TournamentWeight == nil {
		cfg.Rewards.TournamentWeight = map[string]int64{}
	}
	if _, ok := cfg.Rewards.TournamentWeight["offerwall"]; !ok {
		cfg.Rewards.TournamentWeight["offerwall"] = 30
	}
	if _, ok := cfg.Rewards.TournamentWeight["ads"]; !ok {
		cfg.Rewards.TournamentWeight["ads"] = 10
	}
}
