package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	filePath       = "./configs"
	fileExtension  = "yml"
	fileNameConfig = "config"
)

// Environment environment
type Environment string

const (
	Develop    Environment = "develop"
	Production Environment = "prod"
)

// Production check is production
func (e Environment) Production() bool {
	return e == Production
}

// CacheDriver backing store of the local event cache
type CacheDriver string

const (
	CacheMemory   CacheDriver = "memory"
	CachePostgres CacheDriver = "postgres"
)

type DatabaseConfig struct {
	Host         string        `mapstructure:"HOST"`
	Port         int           `mapstructure:"PORT"`
	Username     string        `mapstructure:"USERNAME"`
	Password     string        `mapstructure:"PASSWORD"`
	DatabaseName string        `mapstructure:"DATABASE_NAME"`
	MaxIdleConns int           `mapstructure:"MAX_IDLE_CONNS"`
	MaxOpenConns int           `mapstructure:"MAX_OPEN_CONNS"`
	MaxLifetime  time.Duration `mapstructure:"MAX_LIFE_TIME"`
}

type RelayConfig struct {
	URLs           []string      `mapstructure:"URLS"`
	RankingSupport bool          `mapstructure:"RANKING_SUPPORT"`
	QueryTimeout   time.Duration `mapstructure:"QUERY_TIMEOUT"`
	PublishTimeout time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
}

type GatewayConfig struct {
	URL        string        `mapstructure:"URL"`
	MirrorHost string        `mapstructure:"MIRROR_HOST"`
	Timeout    time.Duration `mapstructure:"TIMEOUT"`
}

type CacheConfig struct {
	Driver         CacheDriver   `mapstructure:"DRIVER"`
	RefreshTimeout time.Duration `mapstructure:"REFRESH_TIMEOUT"`
	RefreshRate    float64       `mapstructure:"REFRESH_RATE"`
	RefreshBurst   int           `mapstructure:"REFRESH_BURST"`
}

type FeedConfig struct {
	PageSize     int           `mapstructure:"PAGE_SIZE"`
	QueryTimeout time.Duration `mapstructure:"QUERY_TIMEOUT"`
}

type AuthConfig struct {
	SecretKey            string        `mapstructure:"SECRET_KEY"`
	VerificationFile     string        `mapstructure:"VERIFICATION_FILE"`
	VerificationDuration time.Duration `mapstructure:"VERIFICATION_DURATION"`
}

type MediaConfig struct {
	Timeout time.Duration `mapstructure:"TIMEOUT"`
}

type CronConfig struct {
	FollowsSpec string `mapstructure:"FOLLOWS_SPEC"`
}

type Configs struct {
	App struct {
		Environment Environment `mapstructure:"ENVIRONMENT"`
		Pubkey      string      `mapstructure:"PUBKEY"`
	} `mapstructure:"APP"`

	Relay   RelayConfig   `mapstructure:"RELAY"`
	Gateway GatewayConfig `mapstructure:"GATEWAY"`
	Cache   CacheConfig   `mapstructure:"CACHE"`
	Feed    FeedConfig    `mapstructure:"FEED"`
	Auth    AuthConfig    `mapstructure:"AUTH"`
	Media   MediaConfig   `mapstructure:"MEDIA"`
	Cron    CronConfig    `mapstructure:"CRON"`

	Database struct {
		CacheSQL DatabaseConfig `mapstructure:"CACHE_SQL"`
	} `mapstructure:"DATABASE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP.ENVIRONMENT", string(Develop))

	v.SetDefault("RELAY.URLS", []string{"wss://relay.divine.video"})
	v.SetDefault("RELAY.RANKING_SUPPORT", true)
	v.SetDefault("RELAY.QUERY_TIMEOUT", 10*time.Second)
	v.SetDefault("RELAY.PUBLISH_TIMEOUT", 10*time.Second)

	v.SetDefault("GATEWAY.URL", "https://gateway.divine.video")
	v.SetDefault("GATEWAY.MIRROR_HOST", "relay.divine.video")
	v.SetDefault("GATEWAY.TIMEOUT", 3*time.Second)

	v.SetDefault("CACHE.DRIVER", string(CacheMemory))
	v.SetDefault("CACHE.REFRESH_TIMEOUT", 15*time.Second)
	v.SetDefault("CACHE.REFRESH_RATE", 2.0)
	v.SetDefault("CACHE.REFRESH_BURST", 4)

	v.SetDefault("FEED.PAGE_SIZE", 20)
	v.SetDefault("FEED.QUERY_TIMEOUT", 10*time.Second)

	v.SetDefault("AUTH.VERIFICATION_FILE", filePath+"/adult_verification.json")
	v.SetDefault("AUTH.VERIFICATION_DURATION", 30*24*time.Hour)

	v.SetDefault("MEDIA.TIMEOUT", 20*time.Second)

	v.SetDefault("CRON.FOLLOWS_SPEC", "*/5 * * * *")

	v.SetDefault("DATABASE.CACHE_SQL.PORT", 5432)
}

// InitConfig init config
// อ่าน config จาก path (ว่าง = ./configs/config.yml), ไม่พบไฟล์ใช้ค่า default
func InitConfig(path string) (*Configs, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filePath)
		v.SetConfigName(fileNameConfig)
		v.SetConfigType(fileExtension)
	}
	v.AutomaticEnv()

	// แปลง . dot เป็น _ underscore
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cf := &Configs{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, err
	}

	return cf, nil
}
