package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/propertyos/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug    bool `help:"Enable debug mode."`
		Version  kong.VersionFlag
		Server   commands.ServerCmd   `cmd:"" help:"Start the dashboard server (website + API)"`
		CheckEnv commands.CheckEnvCmd `cmd:"" help:"Check that the backend environment variables are set in an env file"`
	}
)

func main() {
	// values already in the environment win over the file
	_ = godotenv.Load(commands.DefaultEnvFile)

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("propertyos"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
