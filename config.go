/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/yementuel/internal/gate"
	"github.com/Seednode/yementuel/internal/similarity"
	"github.com/Seednode/yementuel/internal/words"
)

type Config struct {
	adminPassword string
	adminUser     string
	bind          string
	challengeTTL  time.Duration
	db            string
	defaultWord   string
	feedTimeout   time.Duration
	jwtSecret     string
	metrics       bool
	nlpRetries    int
	nlpTimeout    time.Duration
	nlpURL        string
	port          int
	prefix        string
	probeInterval time.Duration
	profile       bool
	timezone      string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
	wordList      string

	location *time.Location
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.nlpRetries < 0 || c.nlpRetries > similarity.MaxRetries {
		return fmt.Errorf("invalid nlp retries (must be between 0-%d inclusive): %d", similarity.MaxRetries, c.nlpRetries)
	}
	if c.nlpTimeout <= 0 {
		return fmt.Errorf("invalid nlp timeout (must be positive): %s", c.nlpTimeout)
	}
	if c.probeInterval <= 0 {
		return fmt.Errorf("invalid probe interval (must be positive): %s", c.probeInterval)
	}
	if c.challengeTTL <= 0 {
		return fmt.Errorf("invalid challenge ttl (must be positive): %s", c.challengeTTL)
	}
	if c.feedTimeout <= 0 {
		return fmt.Errorf("invalid feed timeout (must be positive): %s", c.feedTimeout)
	}
	if c.db == "" {
		return errors.New("--db must not be empty")
	}
	if _, err := words.Canonical(c.defaultWord); err != nil {
		return fmt.Errorf("invalid --default-word: %w", err)
	}

	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		return fmt.Errorf("invalid --timezone: %w", err)
	}
	c.location = loc

	c.prefix = strings.TrimSuffix(c.prefix, "/")

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("YEMENTUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "yementuel",
		Short:         "A daily Korean word-guessing game, scored by semantic similarity.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPassword, "admin-password", "", "password for the seeded admin account; empty skips seeding (env: YEMENTUEL_ADMIN_PASSWORD)")
	fs.StringVar(&cfg.adminUser, "admin-user", "admin", "username for the seeded admin account (env: YEMENTUEL_ADMIN_USER)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: YEMENTUEL_BIND)")
	fs.DurationVar(&cfg.challengeTTL, "challenge-ttl", gate.DefaultTTL, "time before an unanswered reveal challenge expires (env: YEMENTUEL_CHALLENGE_TTL)")
	fs.StringVar(&cfg.db, "db", "yementuel.db", "path to the sqlite database, or :memory: (env: YEMENTUEL_DB)")
	fs.StringVar(&cfg.defaultWord, "default-word", "사과", "word seeded for today when none is set (env: YEMENTUEL_DEFAULT_WORD)")
	fs.DurationVar(&cfg.feedTimeout, "feed-timeout", 60*time.Minute, "time before idle live feeds are closed (env: YEMENTUEL_FEED_TIMEOUT)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "secret used to sign admin tokens; random per process if empty (env: YEMENTUEL_JWT_SECRET)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: YEMENTUEL_METRICS)")
	fs.IntVar(&cfg.nlpRetries, "nlp-retries", similarity.MaxRetries, "retries for failed similarity requests (env: YEMENTUEL_NLP_RETRIES)")
	fs.DurationVar(&cfg.nlpTimeout, "nlp-timeout", similarity.DefaultTimeout, "timeout for a single similarity request (env: YEMENTUEL_NLP_TIMEOUT)")
	fs.StringVar(&cfg.nlpURL, "nlp-url", "", "base url of the similarity service; empty scores locally (env: YEMENTUEL_NLP_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: YEMENTUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: YEMENTUEL_PREFIX)")
	fs.DurationVar(&cfg.probeInterval, "probe-interval", similarity.DefaultProbeInterval, "minimum time between similarity service health probes (env: YEMENTUEL_PROBE_INTERVAL)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: YEMENTUEL_PROFILE)")
	fs.StringVar(&cfg.timezone, "timezone", "UTC", "time zone whose calendar days the game follows (env: YEMENTUEL_TIMEZONE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: YEMENTUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: YEMENTUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: YEMENTUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: YEMENTUEL_VERSION)")
	fs.StringVar(&cfg.wordList, "word-list", "", "file of words, one per line, to rotate through on uncurated days (env: YEMENTUEL_WORD_LIST)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("yementuel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
