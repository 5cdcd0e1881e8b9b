package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/df-mc/dragonfly/server"
	"github.com/oriumgames/wyvern"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty for defaults)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	t, err := wyvern.LoadTuning(*tuningPath)
	if err != nil {
		log.Error("load tuning", "err", err)
		os.Exit(1)
	}

	mngr := wyvern.NewBuilder().
		Logger(log).
		Tuning(t).
		Bundle(func(m *wyvern.Manager) *wyvern.Bundle {
			return wyvern.DragonBundle(m.Tuning())
		}).
		Init()
	defer mngr.Shutdown()

	conf, err := server.DefaultConfig().Config(log)
	if err != nil {
		log.Error("server config", "err", err)
		os.Exit(1)
	}
	srv := conf.New()
	srv.CloseOnProgramEnd()
	srv.Listen()

	log.Info("wyvern: ready", "version", wyvern.Version)
	for p := range srv.Accept() {
		p.Handle(wyvern.NewHandler(mngr.NewActor(p)))
	}
}
