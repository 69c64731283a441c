package main

import (
	"context"
	"fmt"
	"io"

	"curvegraph/internal/blob"
	"curvegraph/internal/config"
	"curvegraph/internal/core"
	"curvegraph/internal/infra/logging"
	prommetrics "curvegraph/internal/infra/metrics/prometheus"
	"curvegraph/internal/sheets"
	"curvegraph/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// deps holds the seams tests replace.
type deps struct {
	loadConfig func() (config.Config, error)
	transport  func(ctx context.Context, cfg config.Remote) (domain.Transport, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		transport: func(ctx context.Context, cfg config.Remote) (domain.Transport, error) {
			return sheets.NewClient(ctx, cfg.BaseURL, cfg.Token)
		},
	}
}

// app is one wired service plus the backends it was built from.
type app struct {
	svc      *core.Service
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	archive  core.Archive
}

type appOptions struct {
	traceTo io.Writer
}

func buildApp(ctx context.Context, d deps, cfg config.Config, opts appOptions) (*app, error) {
	transport, err := d.transport(ctx, cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	archive, err := core.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}

	a := &app{archive: archive}
	svcOpts := []core.Option{
		core.WithLogger(logging.NewGlogLogger("curvegraph")),
		core.WithArchive(archive),
		core.WithBlobStore(blobs),
	}
	switch cfg.Metrics.Driver {
	case "none", "":
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		svcOpts = append(svcOpts, core.WithMetricsRecorder(a.expvar))
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		svcOpts = append(svcOpts, core.WithMetricsRecorder(prommetrics.NewRecorder(a.registry, cfg.Metrics.Namespace)))
	default:
		return nil, fmt.Errorf("unknown metrics driver %s", cfg.Metrics.Driver)
	}
	if opts.traceTo != nil {
		svcOpts = append(svcOpts, core.WithTracer(core.NewSpanLog(opts.traceTo, 256)))
	}
	a.svc = core.NewService(sheets.NewLoader(transport), sheets.NewMutator(transport), svcOpts...)
	return a, nil
}

// close releases archive handles that hold connections.
func (a *app) close() {
	if c, ok := a.archive.(io.Closer); ok {
		_ = c.Close()
	}
}
