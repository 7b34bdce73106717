package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/matemarket/matemarket/internal/auth"
	"github.com/matemarket/matemarket/internal/catalog"
	"github.com/matemarket/matemarket/internal/database"
	"github.com/matemarket/matemarket/internal/inventory"
	"github.com/matemarket/matemarket/internal/messaging"
	"github.com/matemarket/matemarket/internal/notify"
	"github.com/matemarket/matemarket/internal/orders"
	"github.com/matemarket/matemarket/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := database.Open(postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, messaging.TopicOrderCreated)
		defer func() { _ = producer.Close() }()
	}

	alertFrom := envOr("ALERT_MAIL_FROM", "alerts@matemarket.test")
	alertTo := envOr("ALERT_MAIL_TO", "ops@matemarket.test")
	alerts := notify.NewAlertMailer(notify.NewLogMailer(logger), alertFrom, alertTo, logger)

	authRepo := auth.NewRepository(db)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(authService, logger)

	catalogRepo := catalog.NewRepository(db)
	catalogService := catalog.NewService(db, catalogRepo, alerts, logger)
	catalogHandler := catalog.NewHandler(catalogService, logger)

	ordersRepo := orders.NewRepository(db)
	ordersService := orders.NewService(db, ordersRepo, inventory.NewLedger(), publisherOrNil(producer), logger)
	ordersHandler := orders.NewHandler(ordersService, logger)

	authed := auth.Middleware(authService, logger)

	mux := http.NewServeMux()
	route := telemetry.WithHTTPRoute

	mux.HandleFunc("POST /auth/register", route(authHandler.HandleRegister))
	mux.HandleFunc("POST /auth/login", route(authHandler.HandleLogin))
	mux.HandleFunc("PATCH /users/{id}/role", route(authed(authHandler.HandleUpdateRole)))

	mux.HandleFunc("GET /products", route(catalogHandler.HandleList))
	mux.HandleFunc("POST /products", route(authed(catalogHandler.HandleCreate)))
	mux.HandleFunc("GET /products/{id}", route(catalogHandler.HandleGet))
	mux.HandleFunc("PUT /products/{id}", route(authed(catalogHandler.HandleUpdate)))
	mux.HandleFunc("DELETE /products/{id}", route(authed(catalogHandler.HandleDelete)))
	mux.HandleFunc("POST /products/{id}/restore", route(authed(catalogHandler.HandleRestore)))
	mux.HandleFunc("POST /products/{id}/images", route(authed(catalogHandler.HandleAddImage)))
	mux.HandleFunc("POST /products/{id}/reviews", route(authed(catalogHandler.HandleAddReview)))
	mux.HandleFunc("DELETE /products/{productId}/reviews/{reviewId}", route(authed(catalogHandler.HandleDeleteReview)))

	mux.HandleFunc("POST /orders", route(authed(ordersHandler.HandleCreate)))
	mux.HandleFunc("GET /orders", route(authed(ordersHandler.HandleList)))
	mux.HandleFunc("GET /orders/{id}", route(authed(ordersHandler.HandleGet)))
	mux.HandleFunc("PATCH /orders/{id}/status", route(authed(ordersHandler.HandleUpdateState)))
	mux.HandleFunc("DELETE /orders/{id}", route(authed(ordersHandler.HandleDelete)))
	mux.HandleFunc("POST /orders/{id}/restore", route(authed(ordersHandler.HandleRestore)))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := envOr("PORT", "8080")

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// publisherOrNil keeps the typed-nil *Producer out of the Publisher
// interface so the service's nil check stays meaningful.
func publisherOrNil(p *messaging.Producer) orders.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
