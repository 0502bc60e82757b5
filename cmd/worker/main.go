package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ferreiralabs/zapcrm-backend/internal/channel"
	"github.com/ferreiralabs/zapcrm-backend/internal/config"
	"github.com/ferreiralabs/zapcrm-backend/internal/db"
	"github.com/ferreiralabs/zapcrm-backend/internal/notify"
	"github.com/ferreiralabs/zapcrm-backend/internal/queue"
	"github.com/ferreiralabs/zapcrm-backend/internal/report"
	"github.com/ferreiralabs/zapcrm-backend/internal/repository"
	"github.com/ferreiralabs/zapcrm-backend/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	reporter := report.NewLogReporter(log)

	conn, err := db.Connect(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("amqp connection failed")
	}
	defer publisher.Close()

	gateway := channel.NewGatewayClient(cfg.GatewayURL, cfg.GatewayToken)

	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	scheduleRepo := &repository.ScheduleRepository{DB: conn}
	settingRepo := &repository.SettingRepository{DB: conn}
	ticketRepo := &repository.TicketRepository{DB: conn}
	userRepo := &repository.UserRepository{DB: conn}

	manager := queue.NewManager(conn, log, reporter)
	sendLimit := &queue.RateLimit{Max: cfg.SendRateMax, Window: cfg.SendRateWindow}
	messageQueue := manager.Queue(service.MessageQueue, queue.Options{
		Concurrency: cfg.MessageConcurrency,
		Limit:       sendLimit,
	})
	campaignQueue := manager.Queue(service.CampaignQueue, queue.Options{
		Concurrency: cfg.CampaignConcurrency,
		Limit:       sendLimit,
	})

	campaigns := &service.CampaignService{
		Campaigns: campaignRepo,
		Contacts:  contactRepo,
		Settings:  settingRepo,
		Tickets:   ticketRepo,
		Channels:  gateway,
		Notifier:  publisher,
		Reporter:  reporter,
		Queue:     campaignQueue,
		Log:       log.With().Str("component", "campaigns").Logger(),
	}
	schedules := &service.ScheduleService{
		Schedules: scheduleRepo,
		Channels:  gateway,
		Reporter:  reporter,
		Queue:     messageQueue,
		Log:       log.With().Str("component", "schedules").Logger(),
	}
	presence := &service.SessionMonitor{
		Users:    userRepo,
		Reporter: reporter,
		Log:      log.With().Str("component", "presence").Logger(),
	}

	mustHandle(log, messageQueue.Handle(service.JobSendScheduledMessage, queue.JSON(schedules.SendScheduled)))
	mustHandle(log, campaignQueue.Handle(service.JobProcessCampaign, queue.JSON(campaigns.ProcessCampaign)))
	mustHandle(log, campaignQueue.Handle(service.JobPrepareContact, queue.JSON(campaigns.PrepareContact)))
	mustHandle(log, campaignQueue.Handle(service.JobDispatchCampaign, queue.JSON(campaigns.DispatchCampaign)))

	mustHandle(log, manager.Every("verify-schedules", 5*time.Second, schedules.VerifySchedules))
	mustHandle(log, manager.Every("verify-campaigns", 20*time.Second, campaigns.VerifyCampaigns))
	mustHandle(log, manager.Every("session-monitor", time.Minute, presence.SweepOnline))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)
	log.Info().Msg("worker started")

	ops := &http.Server{Addr: cfg.OpsAddr, Handler: opsRouter(conn, publisher, manager)}
	go func() {
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server shutdown failed")
	}
	manager.Stop(shutdownTimeout)
	log.Info().Msg("worker stopped")
}

func mustHandle(log zerolog.Logger, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("worker wiring failed")
	}
}

// opsRouter exposes liveness and queue depth for operators. This is not the
// product API, just enough surface to see the worker is healthy.
func opsRouter(conn interface{ Ping() error }, publisher *notify.AMQPPublisher, manager *queue.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := conn.Ping(); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := publisher.Ping(); err != nil {
			http.Error(w, "broker unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/queues", func(w http.ResponseWriter, req *http.Request) {
		stats, err := manager.Stats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return r
}
