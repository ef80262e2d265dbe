// Command wppd is the per-session inbox daemon. It owns the WhatsApp
// connection and the inbox database and serves them to wpptui and wppctl
// over a Unix socket.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wppcrm/internal/daemon"
	"github.com/matheus3301/wppcrm/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (default from config, then \"main\")")
	metricsFlag := flag.String("metrics", "", "Prometheus listen address, overriding [metrics] listen")
	flag.Parse()

	name := session.Resolve(*sessionFlag)
	if err := session.ValidateName(name); err != nil {
		fatal(err)
	}
	cfg, err := session.LoadConfig()
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}
	if *metricsFlag != "" {
		cfg.Metrics.Listen = *metricsFlag
	}

	// fx logs nothing; construction errors are reported here instead.
	app := fx.New(
		daemon.Module(daemon.Params{SessionName: name, Config: cfg}),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		fatal(fmt.Errorf("session %q: %w", name, err))
	}
	app.Run()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "wppd: %v\n", err)
	os.Exit(1)
}
