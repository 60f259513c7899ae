package cmd

import (
	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var httpPort string
	var grpcPort string

	command := &cobra.Command{
		Use:     "serve",
		Short:   "start the version history server",
		Example: "rev serve --http-port 4021 --grpc-port 4020",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			config.SetupLogging(cfg)

			if cmd.Flag("http-port").Changed {
				cfg.HTTPPort = httpPort
			}
			if cmd.Flag("grpc-port").Changed {
				cfg.GRPCPort = grpcPort
			}

			server.NewServer(cfg).Start()
		},
	}

	command.Flags().StringVar(&httpPort, "http-port", "", "rest port (default from REVISION_HTTP_PORT)")
	command.Flags().StringVar(&grpcPort, "grpc-port", "", "grpc health port (default from REVISION_GRPC_PORT)")

	return command
}
