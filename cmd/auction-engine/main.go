package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reverse-auction/internal/api/handlers"
	"reverse-auction/internal/config"
	"reverse-auction/internal/infrastructure/amqp"
	"reverse-auction/internal/infrastructure/leader"
	"reverse-auction/internal/infrastructure/mysql"
	"reverse-auction/internal/infrastructure/redis"
	"reverse-auction/internal/infrastructure/websocket"
	"reverse-auction/internal/services"
	"reverse-auction/pkg/logger"

	"github.com/go-playground/validator/v10"
	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func main() {
	log := logger.New()
	log.Info("Starting auction engine")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Auction.Timezone)
	if err != nil {
		log.Error("Failed to load business timezone", "timezone", cfg.Auction.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	listingRepo := mysql.NewMySQLListingRepository(db)
	lotRepo := mysql.NewMySQLLotRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	inviteRepo := mysql.NewMySQLInviteRepository(db)
	supplierRepo := mysql.NewMySQLSupplierRepository(db)
	buyerRepo := mysql.NewMySQLBuyerRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Initialize Redis based components
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize mail queue
	mailer, err := amqp.NewMailer(cfg.AMQP.URL, cfg.AMQP.MailQueue, log)
	if err != nil {
		log.Error("Failed to connect to AMQP broker", "error", err)
		os.Exit(1)
	}
	defer mailer.Close()

	// Initialize engine services
	bidValidator := services.NewBidValidator(listingRepo, lotRepo, bidRepo, inviteRepo)

	// Bids and lifecycle transitions for a lot serialize on the same table.
	lotLocks := services.NewLockTable()

	auctionManager := services.NewAuctionManager(
		listingRepo,
		lotRepo,
		bidRepo,
		inviteRepo,
		supplierRepo,
		buyerRepo,
		eventPublisher,
		mailer,
		lotLocks,
		loc,
		log,
	)

	scheduler := services.NewCronJobScheduler(
		schedulerRepo,
		auctionManager,
		leaderElection,
		cfg.Instance.ID,
		cfg.Auction.PollInterval,
		log,
	)
	auctionManager.SetScheduler(scheduler)

	bidService := services.NewBidService(
		listingRepo,
		bidRepo,
		bidValidator,
		scheduler,
		eventPublisher,
		lotLocks,
		cfg.Auction.ExtensionWindow,
		cfg.Auction.ExtensionBy,
		loc,
		log,
	)

	// Initialize websocket layer
	connManager := websocket.NewConnectionManager(log)
	wsHandler := websocket.NewHandler(bidService, listingRepo, inviteRepo, connManager, log)
	eventListener := services.NewEventListener(connManager, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		MaxAge: 86400,
	}))

	// Initialize handlers
	listingHandler := handlers.NewListingHandler(auctionManager, listingRepo, lotRepo, log)
	inviteHandler := handlers.NewInviteHandler(inviteRepo, log)
	webSocketHandler := handlers.NewWebSocketHandler(wsHandler)

	// API routes
	api := e.Group("/api/v1")
	api.POST("/listings", listingHandler.CreateListing)
	api.GET("/listings/:id", listingHandler.GetListing)
	api.POST("/invites/:token/accept", inviteHandler.AcceptInvite)

	e.GET("/ws/listings/:listingId", webSocketHandler.HandleConnection)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-engine",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Recover in-flight auctions before accepting traffic so no listing sits
	// without a pending timer.
	if err := auctionManager.ReinitializeOnStart(context.Background()); err != nil {
		log.Error("Failed to reinitialize auctions", "error", err)
		os.Exit(1)
	}

	// Start background services
	if err := eventListener.Start(context.Background(), eventSubscriber); err != nil {
		log.Error("Failed to start event listener", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Start(context.Background()); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	// Keep contending for leadership so a follower takes over if the leader
	// drops off.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became auction engine leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction engine server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction engine stopped")
}
