// Package main runs the leximpact operator command line.
package main

import (
	"context"
	"os"
	"os/signal"

	leximpactcmd "github.com/leximpact/socio-fiscal-api/internal/cmd/leximpact"
	"github.com/leximpact/socio-fiscal-api/internal/platform/config"
)

var version = "dev"

func main() {
	cfg, err := leximpactcmd.ParseConfig()
	if err != nil {
		config.Exitf("leximpact: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := leximpactcmd.NewRootCommand(version, cfg).ExecuteContext(ctx); err != nil {
		stop()
		config.Exitf("leximpact: %v", err)
	}
}
