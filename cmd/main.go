package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"mechanicBack/internal/booking"
	"mechanicBack/internal/config"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.LoadConfig()
	if err != nil {
		errorLog.Fatal(err)
	}
	bookingCfg, err := booking.LoadBookingConfig()
	if err != nil {
		errorLog.Fatal(err)
	}

	addr := flag.String("addr", cfg.Server.Address, "HTTP network address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Database.URL)
	if err != nil {
		errorLog.Fatal(err)
	}
	defer db.Close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		errorLog.Fatal(err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	app, err := initializeApp(ctx, bookingCfg, db, rdb, errorLog, infoLog)
	if err != nil {
		errorLog.Fatal(err)
	}
	defer app.close()

	handler, err := app.routes()
	if err != nil {
		errorLog.Fatal(err)
	}
	if err := booking.StartBookingWorkers(ctx, app.bookingDeps); err != nil {
		errorLog.Fatal(err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Role"},
	})

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     errorLog,
		Handler:      c.Handler(handler),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog.Printf("shutdown: %v", err)
		}
	}()

	infoLog.Printf("Starting server on %s (backend %s)", *addr, bookingCfg.BackendMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog.Fatal(err)
	}
	infoLog.Printf("Server stopped")
}
