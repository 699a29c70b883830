package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"runtime"
	"time"

	"ecommerce/internal/auth"
	"ecommerce/internal/db"
	"ecommerce/internal/domain/storage"
	"ecommerce/internal/inspect"
	"ecommerce/internal/mailer"
	"ecommerce/internal/payments"
	"ecommerce/internal/ratelimiter"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a console zap logger with colored levels.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

//	@title			Ecommerce Payments API
//	@description	PayPal checkout, payment audit trail and enterprise code emails.

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization

func main() {
	logger, err := NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Infow("no .env file loaded, using process environment", "err", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal(err)
	}

	// Database
	if err := db.Migrate(cfg.db.addr); err != nil {
		logger.Fatal(err)
	}
	logger.Info("database migrations applied")

	pool, err := db.New(context.Background(), db.Config{
		Addr:        cfg.db.addr,
		MaxConns:    cfg.db.maxConns,
		MaxIdleTime: cfg.db.maxIdleTime,
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	store := storage.NewContainer(pool)

	// PayPal access tokens are shared through Redis when it is configured.
	var tokens payments.TokenCache = payments.NewMemoryTokenCache()
	if cfg.redis.addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redis.addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatalw("redis ping failed", "addr", cfg.redis.addr, "err", err)
		}
		defer rdb.Close()
		tokens = payments.NewRedisTokenCache(rdb)
		logger.Infow("paypal token cache backed by redis", "addr", cfg.redis.addr)
	}

	httpTimeout := 30 * time.Second
	if cfg.paypal.timeout > 0 {
		httpTimeout = cfg.paypal.timeout
	}
	paypalClient, err := payments.NewPaypalClient(payments.PaypalClientConfig{
		Mode:         cfg.paypal.mode,
		ClientID:     cfg.paypal.clientID,
		ClientSecret: cfg.paypal.clientSecret,
		HTTPClient:   &http.Client{Timeout: httpTimeout},
		Tokens:       tokens,
		OnBreakerChange: func(from, to gobreaker.State) {
			logger.Warnw("paypal circuit breaker changed state", "from", from.String(), "to", to.String())
		},
	})
	if err != nil {
		logger.Fatal(err)
	}

	processor, err := payments.NewPaypal(payments.PaypalConfig{
		URLRoot:    cfg.urlRoot,
		ReceiptURL: cfg.paypal.receiptURL,
		CancelURL:  cfg.paypal.cancelURL,
		Timeout:    cfg.paypal.timeout,
	}, paypalClient, store.Responses, store.Ledger, logger)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infow("paypal processor ready", "mode", cfg.paypal.mode, "return_url", processor.ReturnURL())

	smtpMailer, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:      cfg.mail.host,
		Port:      cfg.mail.port,
		Username:  cfg.mail.username,
		Password:  cfg.mail.password,
		FromEmail: cfg.mail.fromEmail,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		logger.Fatal(err)
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)
	stop := make(chan struct{})
	defer close(stop)
	go rateLimiter.Cleanup(stop)

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
	)

	switches := inspect.NewSwitches(map[string]bool{
		inspect.EnableSessionInspect: cfg.inspect.enabled,
	})

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		mailer:        smtpMailer,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		paypal:        processor,
		switches:      switches,
		inspector:     inspect.New(switches, logger, cfg.inspect.cookieName, userIdentity),
	}

	// Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("switches", expvar.Func(switches.Snapshot))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
