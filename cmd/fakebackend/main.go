// Command fakebackend serves a local analysis backend for demos: POST
// /api/analyze plus a Socket.IO progress channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/talentvibe/tui/internal/fakeserver"
	"github.com/talentvibe/tui/internal/obs"
)

var Version = "dev"

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "listen address")
	mode := flag.String("mode", string(fakeserver.ModeQueued), "answer mode: queued, sync, nofiles, error")
	step := flag.Duration("step", 700*time.Millisecond, "delay between progress events")
	ping := flag.Duration("ping", 25*time.Second, "engine.io ping interval (0 keeps the engine default)")
	untagged := flag.Bool("untagged", false, "omit job_id from progress events")
	maxUpload := flag.Int64("max-upload", fakeserver.DefaultMaxUpload, "bytes above which uploads get a 413")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := obs.NewLogger(os.Stdout, *level)

	switch m := fakeserver.Mode(*mode); m {
	case fakeserver.ModeQueued, fakeserver.ModeSync, fakeserver.ModeNoFiles, fakeserver.ModeError:
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	shutdownTracing, err := obs.InitTracing("talentvibe-fakebackend")
	if err != nil {
		logger.WithError(err).Warn("tracing.init_failed")
	}

	fs := fakeserver.New(fakeserver.Config{
		Mode:         fakeserver.Mode(*mode),
		MaxUpload:    *maxUpload,
		StepDelay:    *step,
		PingInterval: *ping,
		Untagged:     *untagged,
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           otelhttp.NewHandler(fs, "fakebackend"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    *addr,
			"mode":    *mode,
			"version": Version,
		}).Info("fakebackend.listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("fakebackend.listen")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fs.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("fakebackend.shutdown")
	}
	_ = shutdownTracing(shutdownCtx)
	logger.Info("fakebackend.stopped")
}
