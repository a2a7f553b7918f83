package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mojilabs/mojibridge/internal/config"
	"github.com/mojilabs/mojibridge/internal/daemon"
	"github.com/mojilabs/mojibridge/internal/session"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", session.ConfigPath(), "path to config.toml")
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	// Local .env overrides are optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	sessionName := cfg.Session
	if *sessionFlag != "" {
		sessionName = *sessionFlag
	}
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Config: cfg}),
	)

	app.Run()
}
