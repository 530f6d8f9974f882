package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/nicnocquee/bluesky-later/configs"
	"github.com/nicnocquee/bluesky-later/internal/api/handlers"
	"github.com/nicnocquee/bluesky-later/internal/api/middleware"
	"github.com/nicnocquee/bluesky-later/internal/bluesky"
	job "github.com/nicnocquee/bluesky-later/internal/jobs"
	"github.com/nicnocquee/bluesky-later/internal/queue"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	store, db, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to set up storage backend %q: %v", cfg.StorageBackend, err)
	}
	if db != nil {
		defer closeDB(db)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	pdsClient := bluesky.NewClient(cfg.PDSURL)
	cardService := service.NewCardService(cfg.CardServiceURL, cfg.ImageProxyURL)
	assetService := service.NewAssetService(*cfg)
	payloadService := service.NewPayloadService(pdsClient, cardService, assetService)
	publishService := service.NewPublishService(store, pdsClient, payloadService)

	var asynqClient *asynq.Client
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		defer asynqClient.Close()

		queueW := queue.NewQueue(publishService)
		go func() {
			server := asynq.NewServer(redisConn, asynq.Config{
				// Sequential delivery keeps PDS calls within rate limits.
				Concurrency: 1,
			})

			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

			log.Println("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	post := handlers.NewPostHandler(store, asynqClient)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/due", post.ListDuePosts)
	api.Post("/posts/claim", post.ClaimPosts)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts/:id", post.GetPost)
	api.Patch("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.DeletePost)

	creds := handlers.NewCredentialsHandler(store)
	api.Get("/credentials", creds.GetCredentials)
	api.Post("/credentials", creds.SetCredentials)
	api.Delete("/credentials", creds.DeleteCredentials)

	asset := handlers.NewAssetHandler(assetService)
	api.Post("/assets", asset.UploadAsset)
	api.Get("/assets/:key", asset.GetAsset)

	proxy := handlers.NewProxyHandler(cardService)
	api.Get("/card", proxy.GetCard)
	api.Get("/image-proxy", proxy.GetImage)

	cronAuth := middleware.NewCronAuthMiddleware(cfg.CronSecret)
	cronHandler := handlers.NewCronHandler(publishService)
	api.Post("/cron/publish", cronAuth.AuthMiddleware(), cronHandler.PublishDue)

	// in-process trigger for deployments without an external scheduler
	if cfg.CronEvery != "" {
		publishJob := job.NewPublishDueJob(publishService)
		c := cron.New()
		if err := c.AddFunc(cfg.CronEvery, publishJob.PublishDuePosts); err != nil {
			log.Fatalf("Invalid CRON_EVERY %q: %v", cfg.CronEvery, err)
		}
		c.Start()
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s (storage backend: %s)", cfg.ListenAddr, cfg.StorageBackend)

	gracefulShutdown(app)
}

func buildStore(cfg *config.Config) (repository.PostStore, *sql.DB, error) {
	switch cfg.StorageBackend {
	case "local":
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		return store, nil, err

	case "postgres":
		if cfg.PostgresURI == "" {
			return nil, nil, fmt.Errorf("POSTGRES_URI is required for the postgres backend")
		}
		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := repository.EnsureSchema(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgresStore(db), db, nil

	case "remote":
		if cfg.APIBaseURL == "" {
			return nil, nil, fmt.Errorf("API_BASE_URL is required for the remote backend")
		}
		return repository.NewRemoteStore(cfg.APIBaseURL), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
