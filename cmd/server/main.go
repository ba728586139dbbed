package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"smsbridge-backend/internal/applescript"
	"smsbridge-backend/internal/config"
	"smsbridge-backend/internal/database"
	"smsbridge-backend/internal/handler"
	"smsbridge-backend/internal/middleware"
	"smsbridge-backend/internal/phone"
	"smsbridge-backend/internal/repository"
	"smsbridge-backend/internal/service"
	"smsbridge-backend/internal/session"
	"smsbridge-backend/internal/utils"
	"smsbridge-backend/internal/websocket"
)

func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().Timestamp().Logger()

	repo, err := buildRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing contact store")
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	bridge := applescript.NewBridge(
		applescript.NewRunner(cfg.OsascriptBin),
		log.With().Str("component", "bridge").Logger(),
		cfg.SendTimeout,
	)

	contactService := service.NewContactService(repo, phone.DefaultPlan)
	uploadService := service.NewUploadService(repo, cfg.MaxUploadSize)
	smsService := service.NewSMSService(bridge, log.With().Str("component", "sms").Logger())
	gateway := service.NewGateway(contactService, smsService)

	sessions := session.NewManager(
		log.With().Str("component", "session").Logger(),
		gateway,
		func(id string) session.Events { return wsHub.Session(id) },
		session.NewScheduler(),
		phone.DefaultPlan,
		cfg.UploadGuard,
		cfg.ImportGuard,
	)

	contactHandler := handler.NewContactHandler(contactService)
	uploadHandler := handler.NewUploadHandler(uploadService, sessions, cfg.MaxUploadSize)
	smsHandler := handler.NewSMSHandler(smsService, bridge)
	sessionHandler := handler.NewSessionHandler(sessions, wsHub, cfg)

	mw := middleware.NewMiddleware(cfg)

	router := mux.NewRouter()
	router.Use(mw.CORS, mw.RateLimitMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/contacts", contactHandler.GetContacts).Methods("GET")
	api.HandleFunc("/contacts", contactHandler.AddContact).Methods("POST")
	api.HandleFunc("/contacts/{id}", contactHandler.DeleteContact).Methods("DELETE")
	api.HandleFunc("/upload-contacts", uploadHandler.UploadContacts).Methods("POST")
	api.HandleFunc("/import-contacts", contactHandler.ImportContacts).Methods("POST")
	api.HandleFunc("/send-sms", smsHandler.SendSMS).Methods("POST")
	api.HandleFunc("/test-applescript", smsHandler.TestAppleScript).Methods("GET")
	api.HandleFunc("/session", sessionHandler.CreateSession).Methods("POST")
	api.HandleFunc("/session/{id}", sessionHandler.DeleteSession).Methods("DELETE")
	api.HandleFunc("/session/{id}/commands", sessionHandler.Command).Methods("POST")
	api.HandleFunc("/session/{id}/ws", sessionHandler.WebSocketHandler).Methods("GET")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.ErrorResponse(w, http.StatusNotFound, "Not found")
	})

	if _, err := os.Stat("static"); err == nil {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir("static")))
	}

	addr := cfg.BindAddr + ":" + cfg.AppPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SMS bridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func buildRepository(cfg *config.Config, log zerolog.Logger) (repository.ContactRepository, error) {
	switch cfg.ContactsBackend {
	case "postgres":
		if err := database.Connect(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		if err := database.RunMigrations(cfg.MigrationsDir); err != nil {
			return nil, err
		}
		log.Info().Msg("using postgres contact store")
		return repository.NewPostgresContactRepository(database.DB), nil
	default:
		log.Info().Str("path", cfg.ContactsFile).Msg("using file contact store")
		return repository.NewFileContactRepository(cfg.ContactsFile)
	}
}
