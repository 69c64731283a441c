package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"curvegraph/internal/core"
	"curvegraph/pkg/domain"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type rootFlags struct {
	baseURL string
	token   string
	trace   bool
}

func newRootCmd(d deps) *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "curvegraph",
		Short:         "Resolve and edit the Models/Inputs/Curves graph held in a remote spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// glog reads its flags from the standard flag set.
			return flag.CommandLine.Parse(nil)
		},
	}
	root.PersistentFlags().StringVar(&rf.baseURL, "base-url", "", "remote spreadsheet base URL (overrides CURVEGRAPH_REMOTE_BASE_URL)")
	root.PersistentFlags().StringVar(&rf.token, "token", "", "bearer token (overrides CURVEGRAPH_REMOTE_TOKEN)")
	root.PersistentFlags().BoolVar(&rf.trace, "trace", false, "write one JSON span per operation to stderr")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	// withApp loads configuration, wires the service and reloads once before fn.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			if rf.baseURL != "" {
				cfg.Remote.BaseURL = rf.baseURL
			}
			if rf.token != "" {
				cfg.Remote.Token = rf.token
			}
			var opts appOptions
			if rf.trace {
				opts.traceTo = cmd.ErrOrStderr()
			}
			a, err := buildApp(cmd.Context(), d, cfg, opts)
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := a.svc.Reload(cmd.Context()); err != nil {
				return err
			}
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "reload",
			Short: "Load all three tables and print a summary",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				return writeJSON(cmd.OutOrStdout(), a.svc.Store().Info())
			}),
		},
		&cobra.Command{
			Use:   "model <id>",
			Short: "Print a model with its inputs and curves resolved",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				id, err := parseIdentity(args[0])
				if err != nil {
					return err
				}
				m, err := a.svc.ResolveModel(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), m)
			}),
		},
		&cobra.Command{
			Use:   "input <id>",
			Short: "Print an input with its curves resolved",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				id, err := parseIdentity(args[0])
				if err != nil {
					return err
				}
				in, err := a.svc.ResolveInput(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), in)
			}),
		},
		&cobra.Command{
			Use:   "preview <input-id> <field> <value>",
			Short: "Apply a local-only edit to an input field and print the result",
			Args:  cobra.ExactArgs(3),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				id, err := parseIdentity(args[0])
				if err != nil {
					return err
				}
				var value any = args[2]
				if f, err := strconv.ParseFloat(args[2], 64); err == nil && args[1] != domain.FieldName && args[1] != domain.FieldNotes {
					value = f
				}
				if _, err := a.svc.ShowInput(cmd.Context(), id); err != nil {
					return err
				}
				view, err := a.svc.PreviewInput(cmd.Context(), id, args[1], value)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), view.ShownInput)
			}),
		},
		referenceCmd("attach-input <model-id> <input-id>", "Append an input reference to a model", withApp,
			func(ctx context.Context, a *app, owner, ref domain.Identity) (any, error) {
				if _, err := a.svc.AttachInput(ctx, owner, ref); err != nil {
					return nil, err
				}
				return a.svc.ResolveModel(ctx, owner)
			}),
		referenceCmd("detach-input <model-id> <input-id>", "Remove the first reference to an input from a model", withApp,
			func(ctx context.Context, a *app, owner, ref domain.Identity) (any, error) {
				if _, err := a.svc.DetachInput(ctx, owner, ref); err != nil {
					return nil, err
				}
				return a.svc.ResolveModel(ctx, owner)
			}),
		referenceCmd("attach-curve <input-id> <curve-id>", "Append a curve reference to an input", withApp,
			func(ctx context.Context, a *app, owner, ref domain.Identity) (any, error) {
				if _, err := a.svc.AttachCurve(ctx, owner, ref); err != nil {
					return nil, err
				}
				return a.svc.ResolveInput(ctx, owner)
			}),
		referenceCmd("detach-curve <input-id> <curve-id>", "Remove the first reference to a curve from an input", withApp,
			func(ctx context.Context, a *app, owner, ref domain.Identity) (any, error) {
				if _, err := a.svc.DetachCurve(ctx, owner, ref); err != nil {
					return nil, err
				}
				return a.svc.ResolveInput(ctx, owner)
			}),
		&cobra.Command{
			Use:   "history",
			Short: "List archived snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				infos, err := a.svc.History(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), infos)
			}),
		},
		&cobra.Command{
			Use:   "export",
			Short: "Write the resolved view to the configured blob store",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				info, err := a.svc.ExportView(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), info)
			}),
		},
		newWatchCmd(withApp),
		newResampleCmd(),
	)
	return root
}

type appRunner func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func referenceCmd(use, short string, withApp appRunner, do func(ctx context.Context, a *app, owner, ref domain.Identity) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			owner, err := parseIdentity(args[0])
			if err != nil {
				return err
			}
			ref, err := parseIdentity(args[1])
			if err != nil {
				return err
			}
			out, err := do(cmd.Context(), a, owner, ref)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}),
	}
}

func newWatchCmd(withApp appRunner) *cobra.Command {
	var (
		interval time.Duration
		addr     string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload on an interval and serve the view and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			srv := &http.Server{Addr: addr, Handler: watchMux(a), ReadHeaderTimeout: 5 * time.Second}
			g.Go(func() error {
				glog.Infof("serving on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						// a failed reload keeps serving the previous view
						if _, err := a.svc.Reload(ctx); err != nil {
							glog.Warningf("reload failed: %v", err)
						}
					}
				}
			})
			return g.Wait()
		}),
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "reload interval")
	cmd.Flags().StringVar(&addr, "addr", ":9464", "listen address")
	return cmd
}

func watchMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/view", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = writeJSON(w, a.svc.View())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if a.svc.Store().Revision() == "" {
			http.Error(w, "not loaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok\n")
	})
	if a.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}
	if a.expvar != nil {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	return mux
}

func newResampleCmd() *cobra.Command {
	var period int
	cmd := &cobra.Command{
		Use:   "resample <sample>...",
		Short: "Resample a list of numbers to a period without touching the remote store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples := make([]float64, len(args))
			for i, arg := range args {
				f, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("sample %d: %w", i, err)
				}
				samples[i] = f
			}
			out, err := core.Resample(samples, period)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&period, "period", 0, "number of output slots")
	return cmd
}

func parseIdentity(arg string) (domain.Identity, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid identity %q: must be a positive integer", arg)
	}
	return domain.Identity(n), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
