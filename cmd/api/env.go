package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ecommerce/internal/ratelimiter"
)

func envString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// loadConfig reads the environment. Values that are required for the
// service to take payments are checked here so a bad deploy fails at boot.
func loadConfig() (config, error) {
	var (
		cfg config
		err error
	)

	cfg.addr = envString("ADDR", ":8080")
	cfg.env = envString("ENV", "development")
	cfg.apiURL = envString("EXTERNAL_URL", "localhost:8080")
	cfg.urlRoot = envString("ECOMMERCE_URL_ROOT", "")

	maxConns, err := envInt("DB_MAX_CONNS", 30)
	if err != nil {
		return cfg, err
	}
	cfg.db = dbConfig{
		addr:        envString("DB_ADDR", ""),
		maxConns:    int32(maxConns),
		maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
	}
	cfg.redis = redisConfig{addr: envString("REDIS_ADDR", "")}

	paypalTimeout, err := envDuration("PAYPAL_TIMEOUT", 0)
	if err != nil {
		return cfg, err
	}
	cfg.paypal = paypalConfig{
		mode:         envString("PAYPAL_MODE", "sandbox"),
		clientID:     envString("PAYPAL_CLIENT_ID", ""),
		clientSecret: envString("PAYPAL_CLIENT_SECRET", ""),
		receiptURL:   envString("PAYPAL_RECEIPT_URL", ""),
		cancelURL:    envString("PAYPAL_CANCEL_URL", ""),
		errorURL:     envString("PAYPAL_ERROR_URL", ""),
		timeout:      paypalTimeout,
	}

	smtpPort, err := envInt("SMTP_PORT", 587)
	if err != nil {
		return cfg, err
	}
	cfg.mail = mailConfig{
		host:      envString("SMTP_HOST", ""),
		port:      smtpPort,
		username:  envString("SMTP_USER", ""),
		password:  envString("SMTP_PASS", ""),
		fromEmail: envString("CUSTOMER_SUCCESS_EMAIL", ""),
	}

	cfg.auth = authConfig{
		basic: basicConfig{
			user:     envString("AUTH_BASIC_USER", ""),
			passHash: envString("AUTH_BASIC_PASS_HASH", ""),
		},
		token: tokenConfig{
			secret: envString("AUTH_TOKEN_SECRET", ""),
			iss:    envString("AUTH_TOKEN_ISS", "ecommerce"),
		},
	}

	if cfg.rateLimiter, err = loadRateLimiterConfig(); err != nil {
		return cfg, err
	}

	inspectOn, err := envBool("ENABLE_SESSION_INSPECT", false)
	if err != nil {
		return cfg, err
	}
	cfg.inspect = inspectConfig{
		enabled:    inspectOn,
		cookieName: envString("SESSION_COOKIE_NAME", "sessionid"),
	}

	var missing []string
	for key, val := range map[string]string{
		"DB_ADDR":              cfg.db.addr,
		"ECOMMERCE_URL_ROOT":   cfg.urlRoot,
		"PAYPAL_ERROR_URL":     cfg.paypal.errorURL,
		"AUTH_TOKEN_SECRET":    cfg.auth.token.secret,
		"AUTH_BASIC_PASS_HASH": cfg.auth.basic.passHash,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func loadRateLimiterConfig() (ratelimiter.Config, error) {
	requests, err := envInt("RATELIMITER_REQUESTS_COUNT", 20)
	if err != nil {
		return ratelimiter.Config{}, err
	}
	enabled, err := envBool("RATE_LIMITER_ENABLED", true)
	if err != nil {
		return ratelimiter.Config{}, err
	}
	return ratelimiter.Config{
		RequestsPerTimeFrame: requests,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}, nil
}
