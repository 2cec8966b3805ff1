package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/config"
	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/dusk-indust/consortium/internal/prompt"
	"github.com/dusk-indust/consortium/internal/store"
)

// app is the wiring shared by the subcommands: settings, storage, the model
// transport and the prompt templates.
type app struct {
	dir     string
	cfg     *config.ProjectConfig
	store   store.Store
	a2a     *a2a.HTTPClient
	client  *model.A2AClient
	inv     *model.Invoker
	prompts *prompt.Builder
	logger  *log.Logger
	errOut  io.Writer

	// progress is set with --verbose; printed closes once every event has
	// been written.
	progress *orchestrator.ProgressReporter
	printed  chan struct{}
}

// open loads consortium.yml, opens the store and builds the invoker. The
// caller must Close the returned app.
func (c *cli) open(ctx context.Context) (*app, error) {
	dir := c.configDir
	if dir == "" {
		d, err := config.UserDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.CallTimeout()
	if err != nil {
		return nil, err
	}

	templateDir := cfg.TemplateDir
	if templateDir == "" {
		templateDir = filepath.Join(dir, "templates")
	} else if !filepath.IsAbs(templateDir) {
		templateDir = filepath.Join(dir, templateDir)
	}
	prompts, err := prompt.Load(templateDir)
	if err != nil {
		return nil, err
	}

	backend := firstNonEmpty(c.storeBackend, cfg.Store)
	path := firstNonEmpty(c.storePath, cfg.StorePath)
	if backend != store.BackendMemory && path == "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	st, err := store.Open(ctx, backend, path, dir)
	if err != nil {
		return nil, err
	}

	errOut := &lockedWriter{w: c.errOut}
	logger := log.New(errOut, "", log.LstdFlags)

	var clientOpts []a2a.ClientOption
	if timeout > 0 {
		clientOpts = append(clientOpts, a2a.WithTimeout(timeout))
	}
	httpClient := a2a.NewHTTPClient(clientOpts...)
	client := model.NewA2AClient(httpClient, cfg.Endpoints, cfg.DefaultEndpoint)

	a := &app{
		dir:     dir,
		cfg:     cfg,
		store:   st,
		a2a:     httpClient,
		client:  client,
		inv:     model.NewInvoker(client, model.WithLogSink(st), model.WithLogger(logger)),
		prompts: prompts,
		logger:  logger,
		errOut:  errOut,
	}
	if c.verbose {
		a.watchProgress()
	}
	return a, nil
}

// watchProgress prints progress events to stderr from its own goroutine
// until Close.
func (a *app) watchProgress() {
	a.progress = orchestrator.NewProgressReporter()
	a.printed = make(chan struct{})
	go func() {
		defer close(a.printed)
		for ev := range a.progress.Subscribe() {
			fmt.Fprintln(a.errOut, orchestrator.FormatProgress(ev))
		}
	}()
}

func (a *app) Close() error {
	if a.progress != nil {
		a.progress.Close()
		<-a.printed
	}
	return a.store.Close()
}

// orchestratorOptions routes orchestrator logging to stderr and, with
// --verbose, progress events to the printer.
func (a *app) orchestratorOptions() []orchestrator.Option {
	opts := []orchestrator.Option{orchestrator.WithLogger(a.logger)}
	if a.progress != nil {
		opts = append(opts, orchestrator.WithReporter(a.progress))
	}
	return opts
}

// resolve applies the defaults from consortium.yml to the fields cfg
// leaves empty.
func (a *app) resolve(cfg *orchestrator.Config) {
	a.cfg.Defaults.Apply(cfg)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// lockedWriter serializes writes from the dispatcher's goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
