package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Backend   Backend   `envPrefix:"BACKEND_"`
	Checkout  Checkout  `envPrefix:"CHECKOUT_"`
	Session   Session   `envPrefix:"SESSION_"`
	Admin     Admin     `envPrefix:"ADMIN_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	AMQP      AMQP      `envPrefix:"AMQP_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Sendgrid  Sendgrid  `envPrefix:"SENDGRID_"`
	Rollbar   Rollbar   `envPrefix:"ROLLBAR_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Cache     Cache     `envPrefix:"CACHE_"`
}

// Backend is the hosted auth + REST platform.
type Backend struct {
	URL        string        `env:"URL,required"`
	AnonKey    string        `env:"ANON_KEY,required"`
	JWTSecret  string        `env:"JWT_SECRET"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"1"`
	Backoff    time.Duration `env:"BACKOFF" envDefault:"300ms"`
}

type Checkout struct {
	TaxRate          string `env:"TAX_RATE" envDefault:"20"`
	PricesIncludeVAT bool   `env:"PRICES_INCLUDE_VAT" envDefault:"true"`
	Currency         string `env:"CURRENCY" envDefault:"TRY"`
}

type Session struct {
	CookieName   string        `env:"COOKIE_NAME" envDefault:"academy_sid"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	CheckTimeout time.Duration `env:"CHECK_TIMEOUT" envDefault:"5s"`
	TTL          time.Duration `env:"TTL" envDefault:"720h"`
	// Store is "database" or "redis".
	Store  string `env:"STORE" envDefault:"database"`
	Prefix string `env:"PREFIX" envDefault:"session"`
}

type Admin struct {
	ShowOrderAmounts bool `env:"SHOW_ORDER_AMOUNTS" envDefault:"false"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	URL    string `env:"URL" envDefault:"academy.db"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	TLS      bool   `env:"TLS" envDefault:"false"`
}

type AMQP struct {
	URL            string        `env:"URL"`
	Queue          string        `env:"QUEUE" envDefault:"order.created"`
	RelayInterval  time.Duration `env:"RELAY_INTERVAL" envDefault:"30s"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Sendgrid struct {
	APIKey    string `env:"API_KEY"`
	FromName  string `env:"FROM_NAME" envDefault:"Academy"`
	FromEmail string `env:"FROM_EMAIL" envDefault:"no-reply@example.com"`
	// BackOffice receives a blind copy of every order confirmation.
	BackOffice string `env:"BACKOFFICE_EMAIL"`
}

type Rollbar struct {
	Token       string `env:"TOKEN"`
	CodeVersion string `env:"CODE_VERSION"`
}

type RateLimit struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	Capacity       int           `env:"CAPACITY" envDefault:"20"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"3s"`
	Prefix         string        `env:"PREFIX" envDefault:"rl"`
}

type Cache struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"2m"`
	Prefix  string        `env:"PREFIX" envDefault:"cache"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
	// WebDir holds the built front-end; empty serves the API only.
	WebDir          string        `env:"WEB_DIR"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSOrigins     []string      `env:"HTTP_CORS_ORIGINS" envSeparator:","`
}
