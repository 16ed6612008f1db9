package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/lib/pq"

	"github.com/bookshop-fulfillment/payment-service/internal/cache"
	"github.com/bookshop-fulfillment/payment-service/internal/catalog"
	"github.com/bookshop-fulfillment/payment-service/internal/gateway"
	"github.com/bookshop-fulfillment/payment-service/internal/handlers"
	"github.com/bookshop-fulfillment/payment-service/internal/messaging"
	"github.com/bookshop-fulfillment/payment-service/internal/notify"
	"github.com/bookshop-fulfillment/payment-service/internal/repository"
	"github.com/bookshop-fulfillment/payment-service/internal/service"
)

func main() {
	log.Println("🚀 Payment Service starting...")

	db, err := initDatabase()
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}
	defer db.Close()

	rabbitConfig := messaging.NewRabbitMQConfig()
	rabbitClient := messaging.NewRabbitMQClient(rabbitConfig)

	if err := rabbitClient.Connect(); err != nil {
		log.Fatalf("RabbitMQ connection error: %v", err)
	}
	defer rabbitClient.Close()

	publisher := messaging.NewPublisher(rabbitClient)
	dispatcher := notify.NewDispatcher(publisher)
	defer dispatcher.Close()

	redisCache := cache.NewRedisCache(
		getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		"payment-service",
	)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:       getEnvOrDefault("GATEWAY_BASE_URL", "https://api.gateway.example.com"),
		APIKey:        os.Getenv("GATEWAY_API_KEY"),
		WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		Timeout:       10 * time.Second,
	})

	bookCatalog := catalog.NewCachedCatalog(catalog.NewPostgresCatalog(db), redisCache)
	orderRepo := repository.NewOrderRepository(db)

	paymentService := service.NewPaymentService(bookCatalog, gatewayClient, orderRepo, dispatcher, service.PaymentConfig{
		Currency:    getEnvOrDefault("PAYMENT_CURRENCY", "eur"),
		MaxQuantity: getEnvInt("ORDER_MAX_QUANTITY", 100),
	})
	reconciler := service.NewReconciler(orderRepo, dispatcher)

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(gatewayClient, reconciler)

	app := setupFiberApp()
	setupRoutes(app, paymentHandler, webhookHandler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Payment Service closing...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	port := getEnvOrDefault("PORT", "8002")
	log.Printf("🌍 Payment Service listening: http://localhost:%s", port)

	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Server start error: %v", err)
	}
}

func initDatabase() (*sql.DB, error) {
	dbHost := getEnvOrDefault("DB_HOST", "localhost")
	dbPort := getEnvOrDefault("DB_PORT", "5432")
	dbUser := getEnvOrDefault("DB_USER", "postgres")
	dbPassword := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "bookshop_db")

	connectionString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName,
	)

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("database open error: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping error: %v", err)
	}

	log.Printf("✅ Database connected: %s", dbName)
	return db, nil
}

func setupFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Payment Service v1.0",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	return app
}

func setupRoutes(app *fiber.App, paymentHandler *handlers.PaymentHandler, webhookHandler *handlers.WebhookHandler) {
	api := app.Group("/api/v1")

	api.Get("/health", paymentHandler.HealthCheck)

	payments := api.Group("/payments")
	payments.Post("/", paymentHandler.CreatePayment)
	payments.Get("/:paymentId", paymentHandler.GetPayment)
	payments.Delete("/:paymentId", paymentHandler.CancelPayment)

	api.Get("/orders/:paymentId", paymentHandler.GetOrder)

	// Webhook endpoint stays outside the versioned group; the gateway is
	// configured with this exact path.
	app.Post("/webhooks/gateway", webhookHandler.HandleGatewayWebhook)

	app.Use("*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Route not found",
		})
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
