package main

import (
	"github.com/alecthomas/kingpin/v2"
	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"

	"github.com/williamChen26/ai-code-review/internal/app"
	"github.com/williamChen26/ai-code-review/internal/config"
)

var (
	Version, Branch, Commit, BuildDate string
)

var (
	configPath = kingpin.Flag("config", "path to config file").Short('c').String()
	debug      = kingpin.Flag("debug", "enable debug logging").Bool()
)

func main() {
	kingpin.Parse()

	var err error
	ctx := contem.New(contem.WithLogger(logze.DefaultPtr()), contem.Exit(&err))
	defer ctx.Shutdown()

	err = run(ctx)
	if err != nil {
		logze.DefaultPtr().Error("cannot run", "error", err)
	}
}

func run(ctx contem.Context) error {
	level := logze.LevelInfo
	if *debug {
		level = logze.LevelDebug
	}
	logze.Init(logze.C().WithConsole().WithLevel(level))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return erro.Wrap(err, "load config")
	}

	service, err := app.New(ctx, cfg)
	if err != nil {
		return erro.Wrap(err, "create service")
	}

	if err := service.Start(ctx); err != nil {
		return erro.Wrap(err, "start service")
	}

	return nil
}
