package booking

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mechanicBack/internal/booking/backend"
	"mechanicBack/internal/booking/pricing"
)

const (
	defaultPollInterval      = time.Second
	defaultSearchRadiusM     = 15000
	defaultSearchLimit       = 25
	defaultGeoRegion         = "default"
	defaultReconcileInterval = 5 * time.Minute
	defaultReconcileBatch    = 100
	defaultArchivePrefix     = "declined-jobs"
)

// BookingConfig holds runtime configuration for the booking module.
type BookingConfig struct {
	BackendMode       string
	PollInterval      time.Duration
	SearchRadiusM     int
	SearchLimit       int
	GeoRegion         string
	Rates             pricing.Rates
	IncludeParts      bool
	BusinessTZ        string
	PaymentBaseURL    string
	PaymentMerchantID string
	PaymentSecret     string
	JWTSecret         string
	FirebaseCredsFile string
	AWSRegion         string
	SNSSenderID       string
	SESFrom           string
	ArchiveBucket     string
	ArchivePrefix     string
	RabbitMQURL       string
	MockSeed          uint64
	ReconcileInterval time.Duration
	ReconcileBatch    int
}

// LoadBookingConfig reads configuration from environment variables and applies defaults.
func LoadBookingConfig() (BookingConfig, error) {
	cfg := BookingConfig{
		BackendMode:       backend.ModeMock,
		PollInterval:      defaultPollInterval,
		SearchRadiusM:     defaultSearchRadiusM,
		SearchLimit:       defaultSearchLimit,
		GeoRegion:         defaultGeoRegion,
		Rates:             pricing.DefaultRates(),
		ArchivePrefix:     defaultArchivePrefix,
		ReconcileInterval: defaultReconcileInterval,
		ReconcileBatch:    defaultReconcileBatch,
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("BACKEND_MODE"))); v != "" {
		cfg.BackendMode = v
	}
	if cfg.BackendMode != backend.ModeReal && cfg.BackendMode != backend.ModeMock {
		return BookingConfig{}, fmt.Errorf("BACKEND_MODE must be %q or %q", backend.ModeReal, backend.ModeMock)
	}

	if v, err := readDurationMSEnv("POLL_INTERVAL_MS"); err != nil {
		return BookingConfig{}, fmt.Errorf("parse POLL_INTERVAL_MS: %w", err)
	} else if v != nil {
		cfg.PollInterval = *v
	}

	if v, err := readIntEnv("SEARCH_RADIUS_M"); err != nil {
		return BookingConfig{}, fmt.Errorf("parse SEARCH_RADIUS_M: %w", err)
	} else if v != nil {
		cfg.SearchRadiusM = *v
	}

	if v, err := readIntEnv("SEARCH_LIMIT"); err != nil {
		return BookingConfig{}, fmt.Errorf("parse SEARCH_LIMIT: %w", err)
	} else if v != nil {
		cfg.SearchLimit = *v
	}

	for name, dst := range map[string]*int64{
		"TAX_BPS":                &cfg.Rates.TaxBps,
		"PLATFORM_FEE_BPS":       &cfg.Rates.PlatformFeeBps,
		"CAPTURE_MULTIPLIER_BPS": &cfg.Rates.CaptureMultiplierBps,
	} {
		v, err := readIntEnv(name)
		if err != nil {
			return BookingConfig{}, fmt.Errorf("parse %s: %w", name, err)
		}
		if v != nil {
			*dst = int64(*v)
		}
	}

	if v := os.Getenv("EARNINGS_INCLUDE_PARTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return BookingConfig{}, fmt.Errorf("parse EARNINGS_INCLUDE_PARTS: %w", err)
		}
		cfg.IncludeParts = b
	}

	if v := os.Getenv("MOCK_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return BookingConfig{}, fmt.Errorf("parse MOCK_SEED: %w", err)
		}
		cfg.MockSeed = seed
	}

	if v := os.Getenv("RECONCILE_INTERVAL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return BookingConfig{}, fmt.Errorf("parse RECONCILE_INTERVAL_SECONDS: %w", err)
		}
		cfg.ReconcileInterval = time.Duration(secs) * time.Second
	}
	if v, err := readIntEnv("RECONCILE_BATCH"); err != nil {
		return BookingConfig{}, fmt.Errorf("parse RECONCILE_BATCH: %w", err)
	} else if v != nil {
		cfg.ReconcileBatch = *v
	}

	if v := os.Getenv("GEO_REGION"); v != "" {
		cfg.GeoRegion = v
	}
	if v := os.Getenv("ARCHIVE_PREFIX"); v != "" {
		cfg.ArchivePrefix = v
	}
	cfg.BusinessTZ = os.Getenv("BUSINESS_TZ")
	cfg.PaymentBaseURL = os.Getenv("PAYMENT_BASE_URL")
	cfg.PaymentMerchantID = os.Getenv("PAYMENT_MERCHANT_ID")
	cfg.PaymentSecret = os.Getenv("PAYMENT_SECRET")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.FirebaseCredsFile = os.Getenv("FIREBASE_CREDENTIALS_FILE")
	cfg.AWSRegion = os.Getenv("AWS_REGION")
	cfg.SNSSenderID = os.Getenv("SNS_SENDER_ID")
	cfg.SESFrom = os.Getenv("SES_FROM")
	cfg.ArchiveBucket = os.Getenv("ARCHIVE_BUCKET")
	cfg.RabbitMQURL = os.Getenv("RABBITMQ_URL")

	if err := cfg.validate(); err != nil {
		return BookingConfig{}, err
	}
	return cfg, nil
}

func (c BookingConfig) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.SearchRadiusM <= 0 || c.SearchLimit <= 0 {
		return fmt.Errorf("search radius and limit must be positive")
	}
	if c.Rates.TaxBps < 0 || c.Rates.PlatformFeeBps < 0 || c.Rates.PlatformFeeBps > 10000 || c.Rates.CaptureMultiplierBps <= 0 {
		return fmt.Errorf("invalid pricing rates %+v", c.Rates)
	}
	if c.ReconcileInterval <= 0 || c.ReconcileBatch <= 0 {
		return fmt.Errorf("reconcile interval and batch must be positive")
	}
	if c.BackendMode == backend.ModeReal {
		if c.PaymentBaseURL == "" || c.PaymentMerchantID == "" || c.PaymentSecret == "" {
			return fmt.Errorf("PAYMENT configuration incomplete")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	}
	return nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readDurationMSEnv(name string) (*time.Duration, error) {
	v, err := readIntEnv(name)
	if err != nil || v == nil {
		return nil, err
	}
	d := time.Duration(*v) * time.Millisecond
	return &d, nil
}
