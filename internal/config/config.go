// config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportAMQP      = "amqp"
)

type Config struct {
	Port     string
	LogLevel string
	APIToken string

	BackendURL      string
	RiderOrdersPath string
	UpdateOrderPath string
	ProfilePath     string
	OrderScanPath   string
	LoginPath       string
	HTTPTimeout     time.Duration

	RiderID       string
	RiderToken    string
	RiderEmail    string
	RiderPassword string

	PushTransport  string
	PushURL        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// .env es opcional; en docker las variables vienen del entorno
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIToken: getEnv("API_TOKEN", ""),

		// Backend REST del delivery
		BackendURL:      getEnv("BACKEND_URL", "http://host.docker.internal:5000"),
		RiderOrdersPath: getEnv("RIDER_ORDERS_PATH", "/order/rider-specific"),
		UpdateOrderPath: getEnv("UPDATE_ORDER_PATH", "/order/"),
		ProfilePath:     getEnv("PROFILE_PATH", "/rider/"),
		OrderScanPath:   getEnv("ORDER_SCAN_PATH", "/order/scan"),
		LoginPath:       getEnv("LOGIN_PATH", "/rider/login"),
		HTTPTimeout:     getDuration("HTTP_TIMEOUT", 10*time.Second),

		// Sesión: token ya emitido o credenciales para login
		RiderID:       getEnv("RIDER_ID", ""),
		RiderToken:    getEnv("RIDER_TOKEN", ""),
		RiderEmail:    getEnv("RIDER_EMAIL", ""),
		RiderPassword: getEnv("RIDER_PASSWORD", ""),

		// Canal push: websocket, redis o amqp
		PushTransport:  getEnv("PUSH_TRANSPORT", TransportWebSocket),
		PushURL:        getEnv("PUSH_URL", "ws://host.docker.internal:5000/ws"),
		RedisAddr:      getEnv("REDIS_ADDR", "host.docker.internal:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getInt("REDIS_DB", 0),
		RabbitURL:      getEnv("RABBIT_URL", "amqp://host.docker.internal"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "rider_events"),
	}
}

// Validate checks the values the agent cannot start without.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	hasToken := c.RiderID != "" && c.RiderToken != ""
	hasLogin := c.RiderEmail != "" && c.RiderPassword != ""
	if !hasToken && !hasLogin {
		return errors.New("either RIDER_ID and RIDER_TOKEN or RIDER_EMAIL and RIDER_PASSWORD are required")
	}
	switch c.PushTransport {
	case TransportWebSocket:
		if c.PushURL == "" {
			return errors.New("PUSH_URL is required for the websocket transport")
		}
	case TransportRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis transport")
		}
	case TransportAMQP:
		if c.RabbitURL == "" || c.RabbitExchange == "" {
			return errors.New("RABBIT_URL and RABBIT_EXCHANGE are required for the amqp transport")
		}
	default:
		return fmt.Errorf("unknown PUSH_TRANSPORT %q", c.PushTransport)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
