package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/commandpost/internal/config"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/httpclient"
	"github.com/unkn0wn-root/commandpost/internal/oauth"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
	"github.com/unkn0wn-root/commandpost/internal/openapi/generator"
	"github.com/unkn0wn-root/commandpost/internal/openapi/parser"
	"github.com/unkn0wn-root/commandpost/internal/openapi/writer"
	"github.com/unkn0wn-root/commandpost/internal/store"
	"github.com/unkn0wn-root/commandpost/internal/telemetry"
)

const envPrefix = "COMMANDPOST"

// Viper keys. Each one is also a persistent flag and a COMMANDPOST_* variable.
const (
	keyTimeout         = "timeout"
	keyHistoryLimit    = "history-limit"
	keyDatabase        = "database"
	keyFollowRedirects = "follow-redirects"
	keyInsecure        = "insecure"
	keyProxy           = "proxy"
	keyStyle           = "style"
	keyCallbackAddr    = "callback-addr"
	keyScope           = "oauth-scope"
	keyVerbose         = "verbose"
)

// app carries everything a command needs once configuration is resolved.
type app struct {
	out    io.Writer
	errOut io.Writer
	v      *viper.Viper

	settings config.Settings
	handle   config.SettingsHandle
	logger   *slog.Logger
	client   *httpclient.Client
	oauth    *oauth.Manager
	instr    telemetry.Instrumenter
	specs    *openapi.Service

	db *store.Store
}

func newApp(out, errOut io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return &app{
		out:    out,
		errOut: errOut,
		v:      v,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		instr:  telemetry.Noop(),
	}
}

// setup runs before every command: settings file, then env and flags over it.
func (a *app) setup(cmd *cobra.Command) error {
	settings, handle, err := config.LoadSettings()
	if err != nil {
		return err
	}
	a.handle = handle

	a.v.SetDefault(keyTimeout, settings.TimeoutMs)
	a.v.SetDefault(keyHistoryLimit, settings.HistoryLimit)
	a.v.SetDefault(keyDatabase, settings.Database)
	a.v.SetDefault(keyFollowRedirects, settings.FollowRedirects)
	a.v.SetDefault(keyInsecure, settings.Insecure)
	a.v.SetDefault(keyProxy, settings.Proxy)
	a.v.SetDefault(keyStyle, settings.HighlightStyle)
	a.v.SetDefault(keyCallbackAddr, settings.OAuth.CallbackAddr)
	a.v.SetDefault(keyScope, settings.OAuth.DefaultScope)
	if err := a.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "bind flags")
	}

	a.settings = config.Normalise(config.Settings{
		TimeoutMs:       a.v.GetInt(keyTimeout),
		HistoryLimit:    a.v.GetInt(keyHistoryLimit),
		Database:        a.v.GetString(keyDatabase),
		FollowRedirects: a.v.GetBool(keyFollowRedirects),
		Insecure:        a.v.GetBool(keyInsecure),
		Proxy:           a.v.GetString(keyProxy),
		HighlightStyle:  a.v.GetString(keyStyle),
		OAuth: config.OAuthSettings{
			CallbackAddr: a.v.GetString(keyCallbackAddr),
			DefaultScope: a.v.GetString(keyScope),
		},
	})

	level := slog.LevelWarn
	if a.v.GetBool(keyVerbose) {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))

	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Version = version
	instr, err := telemetry.New(telemetryCfg)
	if err != nil {
		a.logger.Warn("telemetry disabled", "error", err)
		instr = telemetry.Noop()
	}
	a.instr = instr

	a.client = httpclient.NewClient(nil)
	a.client.SetLogger(a.logger)
	a.client.SetTelemetry(a.instr)

	a.oauth = oauth.NewManager(oauth.Options{
		Logger:       a.logger,
		DefaultScope: a.settings.OAuth.DefaultScope,
		CallbackAddr: a.settings.OAuth.CallbackAddr,
	})

	a.specs = &openapi.Service{
		Parser:    parser.NewLoader(),
		Generator: generator.NewBuilder(),
		Writer:    writer.NewFileWriter(),
	}

	a.logger.Debug("configuration resolved",
		"settings", a.handle.Path,
		"timeout_ms", a.settings.TimeoutMs,
		"database", config.DatabasePath(a.settings),
	)
	return nil
}

// store opens the database on first use.
func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	path := config.DatabasePath(a.settings)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "create database directory")
	}
	db, err := store.Open(ctx, path, store.Options{
		HistoryLimit: a.settings.HistoryLimit,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) executeOptions(label string) httpclient.Options {
	wd, _ := os.Getwd()
	return httpclient.Options{
		FollowRedirects:    a.settings.FollowRedirects,
		InsecureSkipVerify: a.settings.Insecure,
		ProxyURL:           a.settings.Proxy,
		BaseDir:            wd,
		Label:              label,
	}
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
		a.db = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.instr.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
}
