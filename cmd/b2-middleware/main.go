package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/api"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/b2auth"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/config"
)

const usage = `B2/S3 download authorization middleware

Rewrites B2 marker URLs (https://b2/<bucket>/<path>) to authorized B2 download
URLs and signs requests for the configured S3 endpoint.

USAGE:
  b2-middleware <command> [options]

COMMANDS:
  process   Read {"url","additional_headers"} JSON on stdin, write it back authorized
  url       Print the authorized URL and headers for <url>
  sign      Print SigV4 headers for <url>
  cache     Show the cached B2 download authorization
  serve     Run the HTTP adapter (POST /api/v1/process, GET /health)

OPTIONS:
  --config=<file>   YAML, JSON, TOML or .env settings file
  --debug           Log at debug level

ENVIRONMENT VARIABLES:
  B2_ACCOUNT_ID, B2_APPLICATION_KEY, B2_VALID_DURATION, B2_API_URL
  S3_ACCESS_KEY, S3_SECRET_KEY, S3_REGION, S3_ENDPOINT, S3_MODE
  STORE_URL        memory, sqlite:///path/prefs.db or postgres://...
  PREFS_DOMAIN     preference domain (default: ManagedInstalls)
  LISTEN_ADDR      serve address (default: :8080)
  JWT_SECRET       require HS256 bearer tokens on /api/v1

  Configuration can be loaded from a .env file in the current directory.
  Credentials missing from the environment are read from the preference store.

EXAMPLES:
  echo '{"url":"https://b2/repo/pkgs/app.pkg"}' | b2-middleware process
  b2-middleware url https://b2/repo/catalogs/all
  b2-middleware sign https://repo.s3.amazonaws.com/manifests/site_default
  STORE_URL=sqlite:///var/lib/b2mw/prefs.db b2-middleware cache
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "settings file")
	debug := fs.Bool("debug", false, "log at debug level")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(os.Args[2:])

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configPath, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	switch command {
	case "process":
		err = a.process(ctx, os.Stdin, os.Stdout)
	case "url":
		err = a.authorizeURL(ctx, fs.Arg(0), os.Stdout)
	case "sign":
		err = a.sign(ctx, fs.Arg(0), os.Stdout)
	case "cache":
		err = a.showCache(ctx, os.Stdout)
	case "serve":
		err = a.serve(ctx)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("Command failed", "command", command, "error", err)
		a.close()
		os.Exit(1)
	}
}

type app struct {
	cfg        *config.Config
	store      b2middleware.PreferenceStore
	dispatcher *b2middleware.Dispatcher
	logger     *slog.Logger
	close      func()
}

// newApp loads the configuration in two passes: the first finds the
// preference store, the second layers the environment over the credentials
// kept in it.
func newApp(ctx context.Context, configPath string, logger *slog.Logger) (*app, error) {
	var base []config.Option
	if configPath != "" {
		base = append(base, config.WithFile(configPath))
	}

	bootstrap, err := config.Load(append(base, config.WithEnv())...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, closeStore, err := bootstrap.BuildStore(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(append(base, config.WithPreferences(ctx, store), config.WithEnv())...)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	d, err := cfg.BuildDispatcher(ctx, store, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &app{cfg: cfg, store: store, dispatcher: d, logger: logger, close: closeStore}, nil
}

func (a *app) process(ctx context.Context, in io.Reader, out io.Writer) error {
	var req b2middleware.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a.dispatcher.ProcessRequest(ctx, req))
}

func (a *app) authorizeURL(ctx context.Context, raw string, out io.Writer) error {
	if raw == "" {
		return errors.New("url argument is required")
	}
	res := a.dispatcher.ProcessRequest(ctx, b2middleware.Request{URL: raw})
	fmt.Fprintln(out, res.URL)
	printHeaders(out, res.AdditionalHeaders)
	return nil
}

func (a *app) sign(ctx context.Context, raw string, out io.Writer) error {
	if raw == "" {
		return errors.New("url argument is required")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	signer, err := a.cfg.BuildSigner(ctx, a.logger)
	if err != nil {
		return err
	}
	res, err := signer.Authorize(ctx, target)
	if err != nil {
		return err
	}
	printHeaders(out, res.Headers)
	return nil
}

func (a *app) showCache(ctx context.Context, out io.Writer) error {
	c, err := b2auth.LoadCache(ctx, a.store)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Domain:\t%s\n", a.cfg.Domain)
	fmt.Fprintf(w, "Token:\t%s\n", redact(c.Token))
	if c.Expiration.IsZero() {
		fmt.Fprintf(w, "Expires:\t-\n")
	} else {
		fmt.Fprintf(w, "Expires:\t%s\n", c.Expiration.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Download URL:\t%s\n", c.DownloadURL)
	fmt.Fprintf(w, "Usable:\t%t\n", c.Usable(time.Now()))
	return w.Flush()
}

func (a *app) serve(ctx context.Context) error {
	handler := api.NewHandler(a.dispatcher,
		api.WithJWTSecret(a.cfg.JWTSecret),
		api.WithLogger(a.logger),
	)
	httpServer := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: handler.Routes(),
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("B2 middleware listening", "addr", a.cfg.ListenAddr, "store", a.cfg.Store.Type,
			"s3_endpoint", a.cfg.S3.Endpoint, "s3_mode", a.cfg.S3.Mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func printHeaders(out io.Writer, headers map[string]string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, headers[name])
	}
}

func redact(token string) string {
	switch {
	case token == "":
		return "-"
	case len(token) <= 8:
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
