package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/terrylgarner/edx-platform/config"
	controllers "github.com/terrylgarner/edx-platform/controllers/certificates"
	"github.com/terrylgarner/edx-platform/database"
	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/queue"
	authRoutes "github.com/terrylgarner/edx-platform/routers/authRoutes"
	certificateRoutes "github.com/terrylgarner/edx-platform/routers/certificateRoutes"
	"github.com/terrylgarner/edx-platform/store"
	"github.com/terrylgarner/edx-platform/utils"
	"github.com/terrylgarner/edx-platform/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	// Serve static files from the public folder
	app.Static("/", "./public")

	certStore := store.NewCertificateStore(database.Database.Db)
	limiter := middleware.NewBadRequestRateLimiter(
		config.AppConfig.RateLimitRequests,
		time.Duration(config.AppConfig.RateLimitMinutes)*time.Minute,
	)
	tasks := queue.NewAsynqQueue(config.AppConfig.RedisAddr)
	defer tasks.Close()
	xqueueClient := queue.NewXQueueClient(
		config.AppConfig.XQueueURL,
		config.AppConfig.XQueueName,
		config.AppConfig.XQueueCallbackURL,
		config.AppConfig.XQueueAuthUser,
		config.AppConfig.XQueueAuthPass,
	)

	xqueueController := controllers.NewXQueueController(certStore, limiter, tasks)
	exampleController := controllers.NewExampleCertificateController(certStore, xqueueClient)
	certController := controllers.NewCertificateController(certStore)

	authRoutes.SetupAuthRoutes(app)
	certificateRoutes.SetupCertificateRoutes(app, xqueueController, exampleController, certController)

	// Run the certificate generation worker alongside the API server.
	processor := worker.NewProcessor(certStore)
	go func() {
		if err := worker.Start(ctx, config.AppConfig.RedisAddr, processor); err != nil {
			log.Printf("Certificate worker stopped: %v", err)
		}
	}()

	scheduler := utils.StartCertificateScheduler(limiter)
	defer scheduler.Stop()

	go func() {
		log.Printf("Server is running on port %s", config.AppConfig.Port)
		if err := app.Listen(":" + config.AppConfig.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
