package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/observability"
)

func newWatchCommand(app *App) *cobra.Command {
	var (
		in          inputFlags
		emit        emitFlags
		metricsAddr string
		delay       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [flags] <input>...",
		Short: "Recompile inputs whenever they or their service configurations change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(emit.format); err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = app.Config.Observability.MetricsAddr
			}
			return app.watch(cmd.Context(), &in, emit, args, metricsAddr, delay)
		},
	}
	in.register(cmd)
	emit.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&delay, "delay", 300*time.Millisecond, "Quiet period before recompiling after a change")
	return cmd
}

// watchedExts are the file types whose changes trigger a rebuild
var watchedExts = map[string]bool{".proto": true, ".yaml": true, ".yml": true, ".json": true,
	".pb": true, ".desc": true, ".protoset": true, ".binpb": true}

func (a *App) watch(ctx context.Context, in *inputFlags, emit emitFlags, args []string, metricsAddr string, delay time.Duration) error {
	registry := prometheus.NewRegistry()
	metrics := observability.NewPipelineMetrics(registry)

	var server *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(mux, registry)
		server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.Logger.WithField("addr", metricsAddr).Info("Serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}
	shutdown := observability.NewShutdownManager(a.Logger, server, 10*time.Second)

	c, stopTracing, err := a.newCompiler(ctx, metrics)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stopTracing()
		return nil
	})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	watched := append([]string{in.serviceConfig}, in.supplementary...)
	if err := setupWatcher(watcher, append(watched, args...)); err != nil {
		return err
	}

	rebuild := func() {
		defer observability.RecoverPanic(a.Logger, "watch rebuild")
		inputs, err := in.load(args)
		if err != nil {
			a.Logger.WithError(err).Error("Failed to load inputs")
			return
		}
		if err := a.convert(ctx, c, inputs, emit); err != nil {
			a.Logger.WithError(err).Warn("Rebuild finished with errors")
			return
		}
		a.Logger.WithField("inputs", len(inputs)).Info("Rebuild finished")
	}
	rebuild()

	trigger := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown.Shutdown()
		case <-trigger:
			rebuild()
		case event, ok := <-watcher.Events:
			if !ok {
				return shutdown.Shutdown()
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := setupWatcher(watcher, []string{event.Name}); err != nil {
						a.Logger.WithError(err).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			a.Logger.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("Change detected")
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return shutdown.Shutdown()
			}
			a.Logger.WithError(err).Warn("Watcher error")
		}
	}
}

// setupWatcher watches every directory under the given directories and the parent
// directory of every given file, so that editors replacing files are noticed
func setupWatcher(watcher *fsnotify.Watcher, paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if err := watcher.Add(filepath.Dir(p)); err != nil {
				return err
			}
			continue
		}
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
