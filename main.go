package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/handlers"
	"github.com/korylprince/streamchat/chatbot"
	"github.com/korylprince/streamchat/httpapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("Invalid log level")
	}
	log.SetLevel(level)

	upstream, err := chatbot.New(config.upstreamConfig(log))
	if err != nil {
		log.WithError(err).Fatal("Could not create upstream")
	}

	var db *sql.DB
	if config.SQLDriver != "" {
		db, err = sql.Open(config.SQLDriver, config.SQLDSN)
		if err != nil {
			log.WithError(err).Fatal("Could not open database")
		}
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := httpapi.NewRouter(&httpapi.Config{
		Upstream:  upstream,
		Prefix:    config.Prefix,
		KeepAlive: time.Duration(config.KeepAlive) * time.Second,
		RateLimit: config.RateLimit,
		RateBurst: config.RateBurst,
		DB:        db,
		Registry:  reg,
		Logger:    log,
	})

	chain := handlers.RecoveryHandler(handlers.RecoveryLogger(log), handlers.PrintRecoveryStack(true))(
		handlers.CORS(
			handlers.AllowedOrigins(config.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
			handlers.ExposedHeaders([]string{httpapi.RequestIDHeader}),
		)(r),
	)

	srv := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           chain,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Could not shut down cleanly")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     config.ListenAddr,
		"provider": upstream.Name(),
		"archive":  db != nil,
	}).Info("Listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server stopped")
	}
}
