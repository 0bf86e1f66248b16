package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv string // dev/prod

	RedisAddr     string // 空ならRedis通知なし
	RedisPassword string
	AMQPURL       string // 空ならRabbitMQ通知なし

	VNPay  VNPayConfig
	PayPal PayPalConfig
	Stripe StripeConfig
	VietQR VietQRConfig
}

// 決済プロバイダの設定は任意。使う時点で足りなければConfigurationErrorにする
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	URL        string
	ReturnURL  string
	TimeZone   string // 既定 Asia/Ho_Chi_Minh
	DebugSign  bool   // VNP_DEBUG_SIGN=1
}

func (c VNPayConfig) Ready() bool {
	return c.TmnCode != "" && c.HashSecret != "" && c.URL != "" && c.ReturnURL != ""
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string // sandbox / live
	ReturnURL    string
	CancelURL    string
	WebhookID    string
	Currency     string // 既定 USD
}

func (c PayPalConfig) Ready() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.ReturnURL != "" && c.CancelURL != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string // 既定 vnd
}

func (c StripeConfig) Ready() bool {
	return c.SecretKey != ""
}

type VietQRConfig struct {
	BankCode    string
	AccountNo   string
	AccountName string // 任意
}

func (c VietQRConfig) Ready() bool {
	return c.BankCode != "" && c.AccountNo != ""
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv: os.Getenv("GO_ENV"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AMQPURL:       os.Getenv("AMQP_URL"),

		VNPay: VNPayConfig{
			TmnCode:    os.Getenv("VNP_TMN_CODE"),
			HashSecret: os.Getenv("VNP_HASH_SECRET"),
			URL:        os.Getenv("VNP_URL"),
			ReturnURL:  os.Getenv("VNP_RETURN_URL"),
			TimeZone:   getenv("VNP_TIMEZONE", "Asia/Ho_Chi_Minh"),
			DebugSign:  os.Getenv("VNP_DEBUG_SIGN") == "1",
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			Mode:         getenv("PAYPAL_MODE", "sandbox"),
			ReturnURL:    os.Getenv("PAYPAL_RETURN_URL"),
			CancelURL:    os.Getenv("PAYPAL_CANCEL_URL"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			Currency:     strings.ToUpper(getenv("PAYPAL_CURRENCY", "USD")),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(getenv("STRIPE_CURRENCY", "vnd")),
		},
		VietQR: VietQRConfig{
			BankCode:    os.Getenv("VIETQR_BANK"),
			AccountNo:   os.Getenv("VIETQR_ACCOUNT_NO"),
			AccountName: os.Getenv("VIETQR_ACCOUNT_NAME"),
		},
	}

	//必須チェック
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	return cfg, nil
}

// gorm用のDSN
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// ":8080" 形式
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
