package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/biki-cloud/online-shop/handlers"
	"github.com/biki-cloud/online-shop/internal/auth"
	"github.com/biki-cloud/online-shop/internal/cache"
	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/categories"
	"github.com/biki-cloud/online-shop/internal/consul"
	"github.com/biki-cloud/online-shop/internal/orders"
	"github.com/biki-cloud/online-shop/internal/payment"
	"github.com/biki-cloud/online-shop/internal/products"
	"github.com/biki-cloud/online-shop/internal/stores/kafka"
	"github.com/biki-cloud/online-shop/internal/stores/postgres"
	"github.com/biki-cloud/online-shop/internal/users"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const defaultTaxRate = 0.10

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	if err := startApp(); err != nil {
		log.Fatalf("failed to start service: %v", err)
	}
}

func startApp() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := postgres.OpenDB()
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := postgres.RunMigrations(db, migrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	privatePEM, err := os.ReadFile(os.Getenv("AUTH_PRIVATE_KEY_FILE"))
	if err != nil {
		return fmt.Errorf("reading private key: %w", err)
	}
	publicPEM, err := os.ReadFile(os.Getenv("AUTH_PUBLIC_KEY_FILE"))
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	keys, err := auth.NewKeys(privatePEM, publicPEM)
	if err != nil {
		return fmt.Errorf("loading auth keys: %w", err)
	}

	// redis product cache is optional; without it lookups just hit postgres
	var productCache products.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		productCache = cache.NewRedisCache(client)
	}

	cartConf, err := cart.NewConf(db)
	if err != nil {
		return fmt.Errorf("creating cart store: %w", err)
	}
	orderConf, err := orders.NewConf(db)
	if err != nil {
		return fmt.Errorf("creating order store: %w", err)
	}
	productConf, err := products.NewConf(db, productCache)
	if err != nil {
		return fmt.Errorf("creating product store: %w", err)
	}
	categoryConf, err := categories.NewConf(db)
	if err != nil {
		return fmt.Errorf("creating category store: %w", err)
	}
	userConf, err := users.NewConf(db)
	if err != nil {
		return fmt.Errorf("creating user store: %w", err)
	}

	stripeClient, err := payment.NewLiveStripeClient(os.Getenv("STRIPE_TEST_KEY"))
	if err != nil {
		return fmt.Errorf("configuring stripe: %w", err)
	}

	var events payment.EventProducer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaConf, err := kafka.NewConf(strings.Split(brokers, ","))
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer kafkaConf.Close()
		events = kafkaConf
	} else {
		slog.Warn("KAFKA_BROKERS not set, order events disabled")
	}

	taxRate := defaultTaxRate
	if v := os.Getenv("TAX_RATE"); v != "" {
		taxRate, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing TAX_RATE: %w", err)
		}
	}
	currency := os.Getenv("STORE_CURRENCY")
	if currency == "" {
		currency = "JPY"
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		return fmt.Errorf("BASE_URL is not set")
	}

	payConf, err := payment.NewConf(cartConf, orderConf, stripeClient, events, payment.Config{
		TaxRate:    taxRate,
		Currency:   currency,
		SuccessURL: baseURL + "/v1/checkout/complete",
		CancelURL:  baseURL + "/cart",
	})
	if err != nil {
		return fmt.Errorf("creating payment service: %w", err)
	}

	prefix := os.Getenv("SERVICE_ENDPOINT_PREFIX")
	if prefix == "" {
		prefix = "/v1"
	}
	port := 8080
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		port, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing SERVICE_PORT: %w", err)
		}
	}

	if consulAddr := os.Getenv("CONSUL_HTTP_ADDR"); consulAddr != "" {
		client, err := consul.NewClient(consulAddr)
		if err != nil {
			return fmt.Errorf("connecting to consul: %w", err)
		}
		host := os.Getenv("SERVICE_HOST")
		if host == "" {
			host = "localhost"
		}
		if err := consul.RegisterService(client, "online-shop", host, port); err != nil {
			return fmt.Errorf("registering with consul: %w", err)
		}
	}

	api := handlers.API(prefix, keys, cartConf, orderConf, productConf, categoryConf, userConf, payConf)

	slog.Info("service starting", slog.Int("port", port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), api); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
