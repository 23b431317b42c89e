package cli

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/roach88/pxflux/internal/billing"
	"github.com/roach88/pxflux/internal/blob"
	"github.com/roach88/pxflux/internal/config"
	"github.com/roach88/pxflux/internal/engine"
	"github.com/roach88/pxflux/internal/firestoretree"
	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/identity"
	"github.com/roach88/pxflux/internal/store"
)

// backend is everything a command needs to run handlers.
//
// The local SQLite store is always opened: it hosts the identity directory
// and, with the sqlite backend, the tree itself.
type backend struct {
	cfg   config.Config
	local *store.Store
	tree  handlers.Tree
	pins  handlers.PinConsumer
	auth  *identity.Directory
	blobs engine.BlobDeleter

	closers []func() error
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{cfg: cfg}
	if err := b.open(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backend) open(ctx context.Context) error {
	if b.cfg.Monitoring.Enabled {
		shutdown, err := installTracing(b.cfg.Monitoring)
		if err != nil {
			return fmt.Errorf("install trace pipeline: %w", err)
		}
		b.closers = append(b.closers, func() error { shutdown(); return nil })
	}

	slog.Debug("opening database", "path", b.cfg.Store.Path)
	st, err := store.Open(b.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	b.local = st
	b.closers = append(b.closers, st.Close)

	switch b.cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, b.cfg.Store.Project)
		if err != nil {
			return fmt.Errorf("firestore client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		ft := firestoretree.New(client)
		b.tree, b.pins = ft, ft
	default:
		b.tree, b.pins = st, st
	}

	if b.cfg.Blobs.Delete {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.blobs = blob.NewDeleter(blob.NewGCS(client))
	} else {
		b.blobs = logBlobs{}
	}

	signer, err := b.signer()
	if err != nil {
		return err
	}
	dir, err := identity.NewDirectory(st.DB(), signer)
	if err != nil {
		return err
	}
	b.auth = dir
	return nil
}

func (b *backend) signer() (*identity.Signer, error) {
	ttl, err := b.cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	secret := []byte(b.cfg.Identity.Secret)
	if len(secret) == 0 {
		slog.Warn("no token secret configured, tokens will not verify after exit")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("token secret: %w", err)
		}
	}
	return identity.NewSigner(secret, ttl)
}

// handlers wires handlers over the backend.
func (b *backend) handlers() (*handlers.Handlers, error) {
	exec, err := b.executor(b.tree, b.blobs)
	if err != nil {
		return nil, err
	}
	deps := handlers.Deps{
		Tree:     b.tree,
		Auth:     b.auth,
		Blobs:    b.blobs,
		Pins:     b.pins,
		Executor: exec,
	}
	if b.cfg.Billing.Enabled {
		deps.Billing = billing.NewService(b.tree, billing.NewSandbox())
	}
	return handlers.New(deps, handlers.Options{KeepPinAccountID: b.cfg.Pins.KeepAccountID}), nil
}

func (b *backend) executor(t engine.Tree, blobs engine.BlobDeleter) (*engine.Executor, error) {
	retry, err := b.cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	return engine.NewExecutor(t, blobs,
		engine.WithMaxConcurrency(b.cfg.Executor.MaxConcurrency),
		engine.WithRetry(retry)), nil
}

// requireLocalTree fails for commands that need the tree in SQLite.
func (b *backend) requireLocalTree(command string) error {
	if b.cfg.Store.Backend != config.BackendSQLite {
		return fmt.Errorf("%s needs the sqlite backend, have %s", command, b.cfg.Store.Backend)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func installTracing(m config.MonitoringConfig) (func(), error) {
	var traceOpts []cloudtrace.Option
	if m.Project != "" {
		traceOpts = append(traceOpts, cloudtrace.WithProjectID(m.Project))
	}
	_, shutdown, err := cloudtrace.InstallNewPipeline(traceOpts,
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(m.SampleRatio)))
	if err != nil {
		return nil, err
	}
	slog.Info("trace export enabled", "project", m.Project, "ratio", m.SampleRatio)
	return shutdown, nil
}

// logBlobs reports blob deletions without performing them.
type logBlobs struct{}

func (logBlobs) DeleteBlob(_ context.Context, uri string) error {
	slog.Info("blob deletion skipped", "uri", uri)
	return nil
}
