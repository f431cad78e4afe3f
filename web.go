/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Seednode/yementuel/internal/admin"
	"github.com/Seednode/yementuel/internal/engine"
	"github.com/Seednode/yementuel/internal/gate"
	"github.com/Seednode/yementuel/internal/ledger"
	"github.com/Seednode/yementuel/internal/metrics"
	"github.com/Seednode/yementuel/internal/similarity"
	"github.com/Seednode/yementuel/internal/store"
	"github.com/Seednode/yementuel/internal/words"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

// services holds everything the handlers need.
type services struct {
	engine   *engine.Engine
	registry *words.Registry
	rotator  *words.Rotator
	provider *similarity.Provider
	gate     *gate.Gate
	auth     *admin.Authenticator
	feeds    *FeedManager
	gatherer prometheus.Gatherer
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("yementuel v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func jwtSecret(cfg *Config) (string, error) {
	if cfg.jwtSecret != "" {
		return cfg.jwtSecret, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	logf(cfg, "ADMIN: No --jwt-secret given, admin tokens will not survive a restart")

	return hex.EncodeToString(buf), nil
}

func loadPool(cfg *Config) ([]string, error) {
	if cfg.wordList == "" {
		return words.DefaultPool, nil
	}

	pool, err := words.LoadPool(cfg.wordList)
	if err != nil {
		return nil, err
	}

	logf(cfg, "WORDS: Loaded %d words from %s", len(pool), cfg.wordList)

	return pool, nil
}

func newProvider(ctx context.Context, cfg *Config, m *metrics.Metrics) *similarity.Provider {
	opts := []similarity.Option{
		similarity.WithProbeInterval(cfg.probeInterval),
		similarity.WithLogger(logger(cfg)),
		similarity.WithMetrics(m),
	}

	if cfg.nlpURL == "" {
		logf(cfg, "PROVIDER: No --nlp-url given, scoring locally")

		return similarity.NewProvider(similarity.NewHealth(similarity.ModeFallback), opts...)
	}

	retry := similarity.DefaultRetryConfig()
	retry.MaxAttempts = cfg.nlpRetries + 1

	client := similarity.NewClient(cfg.nlpURL,
		similarity.WithTimeout(cfg.nlpTimeout),
		similarity.WithRetryConfig(retry),
	)

	provider := similarity.NewProvider(similarity.NewHealth(similarity.ModeFallback),
		append(opts, similarity.WithClient(client))...)

	probeCtx, cancel := context.WithTimeout(ctx, cfg.nlpTimeout)
	defer cancel()

	mode := provider.Refresh(probeCtx)
	logf(cfg, "PROVIDER: Similarity service at %s, starting in %s mode", client.BaseURL(), mode)

	return provider
}

// newServices wires the game onto db and seeds today's word.
func newServices(ctx context.Context, cfg *Config, db *sql.DB) (*services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	provider := newProvider(ctx, cfg, m)

	registry := words.NewRegistry(db)
	feeds := newFeedManager(cfg, cfg.feedTimeout, m)

	eng := engine.New(registry, ledger.New(db), provider,
		engine.WithLocation(cfg.location),
		engine.WithLogger(logger(cfg)),
		engine.WithMetrics(m),
		engine.WithObserver(feeds.Publish),
	)
	feeds.engine = eng

	today := eng.Today()
	seeded, err := registry.Seed(ctx, cfg.defaultWord, today)
	if err != nil {
		return nil, fmt.Errorf("seed default word: %w", err)
	}
	if seeded {
		logf(cfg, "WORDS: Seeded default word for %s", today)
	}

	pool, err := loadPool(cfg)
	if err != nil {
		return nil, err
	}

	rotator, err := words.NewRotator(registry, pool, logger(cfg),
		words.WithRotatorClock(func() time.Time { return time.Now().In(cfg.location) }))
	if err != nil {
		return nil, err
	}

	secret, err := jwtSecret(cfg)
	if err != nil {
		return nil, err
	}

	auth, err := admin.New(db, secret)
	if err != nil {
		return nil, err
	}

	if cfg.adminPassword != "" {
		created, err := auth.SeedDefault(ctx, cfg.adminUser, cfg.adminPassword)
		if err != nil {
			return nil, err
		}
		if created {
			logf(cfg, "ADMIN: Created admin account %q", cfg.adminUser)
		}
	}

	return &services{
		engine:   eng,
		registry: registry,
		rotator:  rotator,
		provider: provider,
		gate:     gate.New(cfg.challengeTTL),
		auth:     auth,
		feeds:    feeds,
		gatherer: reg,
	}, nil
}

func newRouter(cfg *Config, svc *services, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logError(fmt.Errorf("panic serving %s: %v", r.URL.Path, i))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, errs))

	mux.GET(cfg.prefix+"/assets/*asset", serveAssets(cfg, errs))

	mux.GET(cfg.prefix+"/favicons/*favicon", serveFavicons(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, svc.provider, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg))

	registerWordHandlers(cfg, svc, mux, errs)

	registerAdminHandlers(cfg, svc, mux, errs)

	if cfg.metrics {
		mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(svc.gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	logf(cfg, "START: yementuel v%s", releaseVersion)

	db, err := store.Open(ctx, cfg.db)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := newServices(ctx, cfg, db)
	if err != nil {
		return err
	}

	go svc.rotator.Run(ctx)

	if cfg.wordList != "" {
		if err := svc.rotator.WatchPool(ctx, cfg.wordList); err != nil {
			logError(err)
		} else {
			logf(cfg, "WORDS: Watching %s for changes", cfg.wordList)
		}
	}
	go svc.gate.Run(ctx)
	go svc.feeds.Run(ctx)

	errs := make(chan error, 64)
	drained := make(chan struct{})
	go func() {
		drainErrors(errs)
		close(drained)
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, svc, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		// Guesses may wait out the similarity service's full retry budget.
		WriteTimeout: timeout + time.Duration(cfg.nlpRetries+1)*cfg.nlpTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			serveErr <- srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			serveErr <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			svc.feeds.CloseAll()
			return err
		}
	case <-ctx.Done():
		logf(cfg, "STOP: Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopServer(shutdownCtx, srv, errs, drained)

	svc.feeds.CloseAll()

	return nil
}

// stopServer shuts srv down and, once no handler can still report an error,
// closes errs and waits for the drain to finish.
func stopServer(ctx context.Context, srv *http.Server, errs chan error, drained <-chan struct{}) {
	if err := srv.Shutdown(ctx); err != nil {
		logError(fmt.Errorf("shutdown: %w", err))

		return
	}

	close(errs)

	select {
	case <-drained:
	case <-ctx.Done():
	}
}
