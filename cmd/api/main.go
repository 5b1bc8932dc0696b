// Command api serves the membership HTTP API and runs the expiry scheduler.
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/app"
)

func main() {
	configFile := flag.String("config", "", "path to the YAML config file, overrides APP_CONFIG_FILE")
	flag.Parse()
	if *configFile != "" {
		_ = os.Setenv("APP_CONFIG_FILE", *configFile)
	}

	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	a := fx.New(
		app.Module,
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar()}
		}),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// the app logger may not exist yet
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		exitCode = 1
		return
	}

	// SIGINT/SIGTERM
	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		exitCode = 1
		return
	}
	exitCode = sig.ExitCode
}
