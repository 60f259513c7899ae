package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rev",
	Short: "proposal version history tool",
	Example: `rev serve
rev proposal create -p <proposal-id> -t <title>
rev form create -p <proposal-id> -f <form-id> -n <name>
rev versions save -p <proposal-id> -f <form-id> -c <content>
rev versions list -p <proposal-id> -f <form-id> -l 20
rev versions stats -p <proposal-id>
rev rollback -p <proposal-id> -f <form-id> -v <version>`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
