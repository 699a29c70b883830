package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce/internal/auth"
	"ecommerce/internal/domain/storage"
	"ecommerce/internal/inspect"
	"ecommerce/internal/mailer"
	"ecommerce/internal/payments"
	"ecommerce/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	paypal        *payments.Paypal
	switches      *inspect.Switches
	inspector     *inspect.Inspector
}

type config struct {
	addr        string
	env         string
	apiURL      string
	urlRoot     string
	db          dbConfig
	redis       redisConfig
	paypal      paypalConfig
	mail        mailConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
	inspect     inspectConfig
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type redisConfig struct {
	addr string
}

type paypalConfig struct {
	mode         string
	clientID     string
	clientSecret string
	receiptURL   string
	cancelURL    string
	errorURL     string
	timeout      time.Duration
}

type mailConfig struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	iss    string
}

type basicConfig struct {
	user     string
	passHash string
}

type inspectConfig struct {
	enabled    bool
	cookieName string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		// PayPal sends the buyer back here, so it carries no token.
		r.With(app.inspector.Middleware).Get("/payments/paypal/execute", app.executePaypalPaymentHandler)

		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.inspector.Middleware)

			r.Post("/baskets/{basketID}/payments/paypal", app.createPaypalPaymentHandler)
			r.With(app.RateLimiterMiddleware).Post("/enterprise/assignment-email", app.assignmentEmailHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/payments/responses", app.listProcessorResponsesHandler)
			r.Put("/switches/{name}", app.setSwitchHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
