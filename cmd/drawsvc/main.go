package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/prizedraw-services/configs"
	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/broker"
	drawconfig "github.com/avvvet/prizedraw-services/internal/drawsvc/config"
	handlers "github.com/avvvet/prizedraw-services/internal/drawsvc/handlers"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/metrics"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
	nats "github.com/avvvet/prizedraw-services/internal/nats"
)

const SERVICE_NAME = "draw"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := drawconfig.Load()
	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET is empty, every announce call will be rejected")
	}

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.MongoURI, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close(context.Background())
	log.Infof("%s store ready", cfg.StoreDriver)

	poolService := service.NewPoolService(st)
	drawService := service.NewDrawService(st, poolService)
	userService := service.NewUserService(st, cfg.AdminPhones)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_service_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// init peer message broker
	b := broker.NewBroker(n.Conn, drawService)

	// socket services ask for the state of a draw when a viewer joins
	sub, err := b.QueueSubscribeSnapshots(comm.SubjectDrawSnapshot, SERVICE_NAME)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	engine := service.NewEngine(st, poolService, selector.NewFromClock(), b, cfg.MinTickets)
	scheduler := service.NewScheduler(st, poolService, engine, cfg.RoundsPerTick, cfg.SweepConcurrency)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)
	r.Use(metrics.InstrumentHandler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(engine, scheduler, drawService, userService, cfg.CronSecret)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.DrawServicePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Unsubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
