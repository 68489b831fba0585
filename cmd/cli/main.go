package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/cmd/cli/internal/commands"
	"github.com/wolfeidau/photoctl/internal/config"
	"github.com/wolfeidau/photoctl/internal/logger"
	"github.com/wolfeidau/photoctl/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in to the photo service"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account and log in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and forget the stored session"`
		Status   commands.StatusCmd   `cmd:"" help:"Show the stored session (no network; expired or half-written entries are cleared)"`
		Refresh  commands.RefreshCmd  `cmd:"" help:"Renew the access token"`
		Token    commands.TokenCmd    `cmd:"" help:"Print a valid access token"`
		Version  commands.VersionCmd  `cmd:"" help:"Print the version"`

		Server   string        `help:"Photo service URL" default:"http://localhost:8080" env:"PHOTOCTL_SERVER"`
		Storage  string        `help:"Where the session is kept (file, sqlite, memory)" enum:"file,sqlite,memory" default:"file" env:"PHOTOCTL_STORAGE"`
		StateDir string        `help:"Directory for local state (default: ~/.photoctl)" type:"path" env:"PHOTOCTL_STATE_DIR"`
		Timeout  time.Duration `help:"Timeout for each request to the server" default:"30s" env:"PHOTOCTL_TIMEOUT"`
		Debug    bool          `help:"Enable debug mode."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("photoctl"),
		kong.Description("Manage your photo service login from the command line."),
		kong.Configuration(config.YAML, config.DefaultPaths...),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	logger.SetGlobal(logger.Setup(cli.Debug))

	shutdown, err := telemetry.InitTelemetry(ctx, "photoctl", version)
	cmd.FatalIfErrorf(err)

	err = cmd.Run(&commands.Globals{
		Debug:    cli.Debug,
		Version:  version,
		Server:   cli.Server,
		Storage:  cli.Storage,
		StateDir: cli.StateDir,
		Timeout:  cli.Timeout,
	})

	// flush telemetry even when the command failed
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("failed to flush telemetry")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
