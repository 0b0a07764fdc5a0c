package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"` // empty means local sqlite file

	Auth      Auth      `envPrefix:"AUTH_"`
	Gateway   Gateway   `envPrefix:"GATEWAY_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Orders    Orders    `envPrefix:"ORDERS_"`
}

type Auth struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// Gateway holds the hosted payment page settings. Provider is "authorizenet" or "braintree".
type Gateway struct {
	Provider           string   `env:"PROVIDER" envDefault:"authorizenet"`
	APIURL             string   `env:"API_URL" envDefault:"https://apitest.authorize.net/xml/v1/request.api"`
	HostedPageURL      string   `env:"HOSTED_PAGE_URL" envDefault:"https://test.authorize.net/payment/payment"`
	LoginID            string   `env:"LOGIN_ID"`
	TransactionKey     string   `env:"TRANSACTION_KEY"`
	SignatureKey       string   `env:"SIGNATURE_KEY"`
	ReturnURL          string   `env:"RETURN_URL" envDefault:"http://localhost:8080/order-confirmation"`
	CancelURL          string   `env:"CANCEL_URL" envDefault:"http://localhost:8080/"`
	AllowedReturnHosts []string `env:"ALLOWED_RETURN_HOSTS" envSeparator:"," envDefault:"localhost,127.0.0.1"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Redis struct {
	Addr      string        `env:"ADDR"`
	Password  string        `env:"PASSWORD"`
	DB        int           `env:"DB" envDefault:"0"`
	StatusTTL time.Duration `env:"STATUS_TTL" envDefault:"10m"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"storefront-events"`
}

type Orders struct {
	CancelWindow time.Duration `env:"CANCEL_WINDOW" envDefault:"15m"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsDevelopment() bool {
	return e.Name == "development"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (h HTTPServer) Addr() string {
	return h.Host + ":" + h.Port
}

// Kiosk configures the terminal storefront that hosts the checkout workflow.
type Kiosk struct {
	Log             Log
	APIURL          string `env:"KIOSK_API_URL" envDefault:"http://localhost:8080"`
	Token           string `env:"KIOSK_TOKEN"`
	ListenAddr      string `env:"KIOSK_LISTEN_ADDR" envDefault:"127.0.0.1:8090"`
	ReferencePrefix string `env:"KIOSK_REFERENCE_PREFIX" envDefault:"FD"`
	RedisAddr       string `env:"KIOSK_REDIS_ADDR"`
	TaxRate         string `env:"KIOSK_TAX_RATE" envDefault:"0.06"`

	Checkout Checkout `envPrefix:"CHECKOUT_"`
}

// Checkout holds the client workflow timings.
type Checkout struct {
	InitialDelay       time.Duration `env:"INITIAL_DELAY" envDefault:"1500ms"`
	RetryInterval      time.Duration `env:"RETRY_INTERVAL" envDefault:"2s"`
	MaxRetries         int           `env:"MAX_RETRIES" envDefault:"8"`
	SuccessDelay       time.Duration `env:"SUCCESS_DELAY" envDefault:"800ms"`
	GoBackDelay        time.Duration `env:"GO_BACK_DELAY" envDefault:"3s"`
	Countdown          time.Duration `env:"COUNTDOWN" envDefault:"15m"`
	StatusPollInterval time.Duration `env:"STATUS_POLL_INTERVAL" envDefault:"4s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

// Load reads .env (if present) and parses the environment into T.
func Load[T any]() (*T, error) {
	// missing .env is fine outside local dev
	_ = godotenv.Load()

	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
