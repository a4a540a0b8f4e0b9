package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultFreePostAllotment = 2
	DefaultMaxPostLength     = 280
	DefaultUpstreamTimeout   = 30 * time.Second
)

type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	JWT      JWTConfig             `mapstructure:"jwt"`
	OAuth    OAuthConfig           `mapstructure:"oauth"`
	Stripe   StripeConfig          `mapstructure:"stripe"`
	Quota    QuotaConfig           `mapstructure:"quota"`
	Plans    map[string]PlanConfig `mapstructure:"plans"`
	CORS     CORSConfig            `mapstructure:"cors"`
	Log      LogConfig             `mapstructure:"log"`
	HTTP     HTTPConfig            `mapstructure:"http"`
	Cron     CronConfig            `mapstructure:"cron"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"`
	AppURL string `mapstructure:"app_url"` // 前端地址，用于 OAuth 回跳和支付回跳
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql / postgres
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OAuthConfig struct {
	Twitter TwitterOAuthConfig `mapstructure:"twitter"`
}

type TwitterOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	APIBaseURL   string `mapstructure:"api_base_url"`
	// 用于加密存储第三方 access token
	CredentialKey string `mapstructure:"credential_key"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PriceID       string `mapstructure:"price_id"`
}

type QuotaConfig struct {
	FreePostAllotment int `mapstructure:"free_post_allotment"` // 终身免费额度
	MaxPostLength     int `mapstructure:"max_post_length"`
}

type PlanConfig struct {
	MonthlyPostLimit int `mapstructure:"monthly_post_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text / json
}

type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type CronConfig struct {
	MonthlyResetSpec string `mapstructure:"monthly_reset_spec"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults 补全未配置的默认值
func (c *Config) ApplyDefaults() {
	if c.Quota.FreePostAllotment <= 0 {
		c.Quota.FreePostAllotment = DefaultFreePostAllotment
	}
	if c.Quota.MaxPostLength <= 0 {
		c.Quota.MaxPostLength = DefaultMaxPostLength
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = int(DefaultUpstreamTimeout / time.Second)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Cron.MonthlyResetSpec == "" {
		c.Cron.MonthlyResetSpec = "0 0 1 * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Plans == nil {
		c.Plans = map[string]PlanConfig{}
	}
}

// Validate 检查必需的密钥、前端地址和套餐
func (c *Config) Validate() error {
	var missing []string
	if c.Server.AppURL == "" {
		missing = append(missing, "server.app_url")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if c.OAuth.Twitter.CredentialKey == "" {
		missing = append(missing, "oauth.twitter.credential_key")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "stripe.secret_key")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "stripe.webhook_secret")
	}
	for _, plan := range []string{"free", "paid"} {
		if _, ok := c.Plans[plan]; !ok {
			missing = append(missing, "plans."+plan)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required config: " + strings.Join(missing, ", "))
	}
	return nil
}

// UpstreamTimeout 外部 API 调用超时
func (c *Config) UpstreamTimeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return DefaultUpstreamTimeout
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MonthlyLimit 获取套餐的月度发帖上限，未知套餐按 free 处理
func (c *Config) MonthlyLimit(plan string) int {
	if p, ok := c.Plans[plan]; ok {
		return p.MonthlyPostLimit
	}
	return c.Plans["free"].MonthlyPostLimit
}
