package main // Entry point package

import (
	"time"

	"github.com/joho/godotenv" // Loads .env files in local development
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/novinclub/benefits-server/internal/billing"
	"github.com/novinclub/benefits-server/internal/config"
	"github.com/novinclub/benefits-server/internal/database"
	"github.com/novinclub/benefits-server/internal/finalize"
	"github.com/novinclub/benefits-server/internal/handler"
	"github.com/novinclub/benefits-server/internal/middleware"
	"github.com/novinclub/benefits-server/internal/queue"
	"github.com/novinclub/benefits-server/internal/repository"
	"github.com/novinclub/benefits-server/internal/router"
	queue_publisher "github.com/novinclub/benefits-server/internal/service"
)

func main() {
	// In local development a .env file supplies the environment; in
	// production the variables come from the deployment. Absence is fine.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	// Connect to MySQL and verify the connection before serving traffic.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("could not connect to the database")
	}
	defer db.Close()

	// Repositories over the shared pool.
	tourRepo := repository.NewTourRepo(db)
	memberRepo := repository.NewMemberRepo(db)
	reservationRepo := repository.NewReservationRepo(db)

	// Collaborators for the finalization engine: the transactional store,
	// the billing service client and the RabbitMQ event publisher.
	store := finalize.NewSQLStore(db, reservationRepo, tourRepo)
	billingClient := billing.NewClient(cfg.BillingBaseURL, 10*time.Second)
	publisher := queue_publisher.NewPublisher()

	engine := finalize.NewEngine(store, memberRepo, billingClient, publisher, finalize.Config{
		HoldDuration: time.Duration(cfg.HoldTTLHours) * time.Hour,
		MinLeadTime:  time.Duration(cfg.MinLeadHours) * time.Hour,
		Timeout:      time.Duration(cfg.FinalizeTimeout) * time.Second,
	}, log)

	// The consumer appends held reservations to the audit log. It
	// reconnects on broker failure and never takes the API down.
	go func() {
		if err := queue.StartHeldConsumer(); err != nil {
			log.WithError(err).Warn("reservation.held consumer stopped")
		}
	}()

	// Redis backs the rate limiter and the browse response cache. When it
	// is unreachable both middlewares degrade to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response caching disabled")
	}
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	browseCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New() // Create Echo instance
	e.HideBanner = true

	router.RegisterRoutes(e) // Health check
	router.RegisterPublic(e, &handler.TourHandler{TourRepo: tourRepo}, browseCache)
	router.RegisterMember(e,
		&handler.FinalizeHandler{Engine: engine},
		&handler.MemberReservationHandler{MemberRepo: memberRepo, ReservationRepo: reservationRepo},
		cfg.JWTSecret,
		rateLimit,
	)

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.WithError(err).Fatal("server stopped")
	}
}
