package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/sns"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"mechanicBack/internal/booking"
	"mechanicBack/internal/booking/backend"
	"mechanicBack/internal/booking/events"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/config"
)

type application struct {
	errorLog    *log.Logger
	infoLog     *log.Logger
	db          *sql.DB
	rdb         *redis.Client
	backend     backend.Backend
	bookingDeps *booking.BookingDeps
	closers     []func() error
}

// logAdapter exposes the standard loggers through the module Logger interface.
type logAdapter struct {
	info *log.Logger
	err  *log.Logger
}

func (l logAdapter) Infof(format string, args ...interface{}) {
	l.info.Output(2, fmt.Sprintf(format, args...))
}

func (l logAdapter) Errorf(format string, args ...interface{}) {
	l.err.Output(2, fmt.Sprintf(format, args...))
}

func initializeApp(ctx context.Context, cfg booking.BookingConfig, db *sql.DB, rdb *redis.Client, errorLog, infoLog *log.Logger) (*application, error) {
	logger := logAdapter{info: infoLog, err: errorLog}
	app := &application{errorLog: errorLog, infoLog: infoLog, db: db, rdb: rdb}

	deps := &booking.BookingDeps{
		DB:     db,
		RDB:    rdb,
		Logger: logger,
		Config: cfg,
	}

	var channels []notify.Channel
	if cfg.BackendMode == backend.ModeReal {
		if cfg.FirebaseCredsFile != "" {
			fbApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredsFile))
			if err != nil {
				return nil, fmt.Errorf("firebase app: %w", err)
			}
			messagingClient, err := fbApp.Messaging(ctx)
			if err != nil {
				return nil, fmt.Errorf("firebase messaging: %w", err)
			}
			channels = append(channels, notify.NewFCM(messagingClient))
		}

		if cfg.AWSRegion != "" {
			sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
			if err != nil {
				return nil, fmt.Errorf("aws session: %w", err)
			}
			channels = append(channels, notify.NewSMS(sns.New(sess), cfg.SNSSenderID))
			if cfg.SESFrom != "" {
				channels = append(channels, notify.NewEmail(ses.New(sess), cfg.SESFrom))
			}
			if cfg.ArchiveBucket != "" {
				deps.S3 = s3.New(sess)
			}
		}
	}

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		if err := events.Declare(ch, events.DefaultExchange); err != nil {
			conn.Close()
			return nil, fmt.Errorf("rabbitmq exchange: %w", err)
		}
		deps.Events = events.NewPublisher(ch, events.DefaultExchange)
		app.closers = append(app.closers, ch.Close, conn.Close)
		infoLog.Printf("Publishing job events to exchange %s", events.DefaultExchange)
	}

	b, err := booking.NewBackend(cfg, db, rdb, channels, logger)
	if err != nil {
		return nil, err
	}
	deps.Backend = b
	app.backend = b
	app.bookingDeps = deps
	return app, nil
}

func (app *application) close() {
	for _, c := range app.closers {
		if err := c(); err != nil {
			app.errorLog.Printf("close: %v", err)
		}
	}
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Printf("Failed to open DB: %v", err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Printf("Failed to ping DB: %v", err)
		return nil, err
	}
	db.SetMaxIdleConns(35)
	db.SetConnMaxLifetime(5 * time.Minute)
	log.Println("Successfully connected to database")
	return db, nil
}

// openRedis returns nil when no address is configured.
func openRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Println("Successfully connected to redis")
	return rdb, nil
}
