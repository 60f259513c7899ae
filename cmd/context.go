package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/emrgen/revision"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configDirName  = "revision"
	configFileName = "context"
	defaultServer  = "http://localhost:4021"
)

var (
	// flags shared by every client command, they override the saved context
	serverFlag   string
	userIDFlag   string
	userNameFlag string
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the server and identity the client commands use.
type Context struct {
	Server   string `mapstructure:"server" yaml:"server"`
	UserID   string `mapstructure:"user_id" yaml:"user_id"`
	UserName string `mapstructure:"user_name" yaml:"user_name"`
}

// saves the context info to the config file in $XDG_CONFIG_HOME/revision
func setContextCommand() *cobra.Command {
	var server string
	var userID string
	var userName string

	command := &cobra.Command{
		Use:     "set",
		Short:   "set context",
		Example: "rev context set -s http://localhost:4021 -u <user-id> -n <user-name>",
		Run: func(cmd *cobra.Command, args []string) {
			if server == "" && userID == "" {
				color.Red(`missing: --server or --user-id`)
				return
			}

			current := readContext()
			if server != "" {
				current.Server = server
			}
			if userID != "" {
				current.UserID = userID
				current.UserName = userName
			}

			if err := writeContext(current); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}

			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&server, "server", "s", "", "server url")
	command.Flags().StringVarP(&userID, "user-id", "u", "", "user id sent with every request")
	command.Flags().StringVarP(&userName, "user-name", "n", "", "user display name")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			current := readContext()
			printField("Server", current.Server)
			printField("User", current.UserID)
			printField("Name", current.UserName)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			path, err := contextFile()
			if err != nil {
				fmt.Println("error locating config file: ", err)
				return
			}

			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Println("error removing config file: ", err)
				return
			}

			fmt.Println("context reset")
		},
	}

	return command
}

func contextFile() (string, error) {
	return xdg.ConfigFile(filepath.Join(configDirName, configFileName+".yml"))
}

func writeContext(current Context) error {
	path, err := contextFile()
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	v.Set("context", map[string]string{
		"server":    current.Server,
		"user_id":   current.UserID,
		"user_name": current.UserName,
	})

	return v.WriteConfigAs(path)
}

func readContext() Context {
	current := Context{Server: defaultServer}

	path, err := contextFile()
	if err != nil {
		return current
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return current
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	if err := v.ReadInConfig(); err != nil {
		fmt.Println("error reading config file: ", err)
		return current
	}

	if err := v.UnmarshalKey("context", &current); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}
	if current.Server == "" {
		current.Server = defaultServer
	}

	return current
}

func bindContextFlags(command *cobra.Command) {
	command.Flags().StringVar(&serverFlag, "server", "", "server url (overrides the context)")
	command.Flags().StringVar(&userIDFlag, "user-id", "", "user id (overrides the context)")
	command.Flags().StringVar(&userNameFlag, "user-name", "", "user name (overrides the context)")
}

// newClient builds a client from the saved context and the override flags.
func newClient() *revision.Client {
	current := readContext()
	if serverFlag != "" {
		current.Server = serverFlag
	}
	if userIDFlag != "" {
		current.UserID = userIDFlag
		current.UserName = userNameFlag
	}
	if current.UserName == "" {
		current.UserName = current.UserID
	}

	var opts []revision.ClientOption
	if current.UserID != "" {
		opts = append(opts, revision.WithUser(current.UserID, current.UserName))
	}

	return revision.NewClient(current.Server, opts...)
}
