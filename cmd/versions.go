package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/emrgen/revision"
	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "version history commands",
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	versionsCmd.AddCommand(listVersionsCmd())
	versionsCmd.AddCommand(versionStatsCmd())
	versionsCmd.AddCommand(getVersionCmd())
	versionsCmd.AddCommand(saveVersionCmd())

	rootCmd.AddCommand(rollbackCmd())
}

func listVersionsCmd() *cobra.Command {
	var proposalID string
	var formID string
	var limit int

	var required = []string{"proposal-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list versions, newest first",
		Example: "rev versions list -p <proposal-id> -f <form-id> -l 20",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			versions, err := newClient().ListVersions(context.Background(), proposalID, formID, limit)
			if err != nil {
				color.Red("Error loading versions: %v", err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Version", "Type", "Change", "Comment", "Words", "Created By", "Created At"})
			for _, version := range versions {
				words := ""
				if delta, ok := version.WordCountDelta(); ok {
					words = fmt.Sprintf("%+d", delta)
				}
				table.Append([]string{
					strconv.FormatInt(version.VersionNumber, 10),
					version.VersionType,
					version.ChangeType,
					version.Comment,
					words,
					version.CreatedBy.Name,
					version.CreatedAt.Local().Format(timeFormat),
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	command.Flags().StringVarP(&formID, "form-id", "f", "", "form id, lists the proposal versions when empty")
	command.Flags().IntVarP(&limit, "limit", "l", v1.DefaultListLimit, "maximum number of versions")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func versionStatsCmd() *cobra.Command {
	var proposalID string

	var required = []string{"proposal-id"}

	command := &cobra.Command{
		Use:     "stats",
		Short:   "version statistics of a proposal",
		Example: "rev versions stats -p <proposal-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			stats, err := newClient().GetVersionStats(context.Background(), proposalID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Total versions", strconv.FormatInt(stats.TotalVersions, 10))
			printField("Compression ratio", fmt.Sprintf("%.1f%%", stats.CompressionRatio))
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	bindContextFlags(command)

	return command
}

func getVersionCmd() *cobra.Command {
	var proposalID string
	var formID string
	var version int64

	var required = []string{"proposal-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "show one version, or the current content without --version",
		Example: "rev versions get -p <proposal-id> -f <form-id> -v <version>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			client := newClient()
			ctx := context.Background()

			if version <= 0 {
				current, err := client.GetCurrentContent(ctx, proposalID, formID)
				if err != nil {
					logrus.Error(err)
					return
				}
				printField("Version", strconv.FormatInt(current.VersionNumber, 10))
				printField("Content", string(current.Content))
				return
			}

			record, err := client.GetVersion(ctx, proposalID, formID, version)
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("ID", record.ID)
			printField("Version", strconv.FormatInt(record.VersionNumber, 10))
			printField("Change", record.ChangeType)
			printField("Comment", record.Comment)
			printField("Created By", record.CreatedBy.Name)
			printField("Created At", record.CreatedAt.Local().Format(timeFormat))
			printField("Content", string(record.Content))
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	command.Flags().StringVarP(&formID, "form-id", "f", "", "form id")
	command.Flags().Int64VarP(&version, "version", "v", 0, "version number")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func saveVersionCmd() *cobra.Command {
	var proposalID string
	var formID string
	var content string
	var comment string
	var versionType string

	var required = []string{"proposal-id", "content"}

	command := &cobra.Command{
		Use:     "save",
		Short:   "save content as a new version, use -c - to read stdin",
		Example: "rev versions save -p <proposal-id> -f <form-id> -c '{\"title\":\"draft\"}' -m <comment>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if content == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					logrus.Error(err)
					return
				}
				content = string(data)
			}
			if !json.Valid([]byte(content)) {
				color.Red("content must be valid JSON")
				return
			}

			record, err := newClient().SaveVersion(context.Background(), proposalID, formID, &v1.SaveVersionRequest{
				Content:     json.RawMessage(content),
				Comment:     comment,
				VersionType: versionType,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			color.Green("saved version %d", record.VersionNumber)
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	command.Flags().StringVarP(&formID, "form-id", "f", "", "form id")
	command.Flags().StringVarP(&content, "content", "c", "", "JSON content (required)")
	command.Flags().StringVarP(&comment, "comment", "m", "", "comment")
	command.Flags().StringVarP(&versionType, "type", "t", "", "SNAPSHOT or INCREMENTAL")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func rollbackCmd() *cobra.Command {
	var proposalID string
	var formID string
	var version int64
	var yes bool

	var required = []string{"proposal-id", "version"}

	command := &cobra.Command{
		Use:     "rollback",
		Short:   "restore a version as a new version",
		Example: "rev rollback -p <proposal-id> -f <form-id> -v <version>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			panel := revision.NewHistoryPanel(newClient(), proposalID, formID)
			confirm := revision.ConfirmFunc(func(message string) bool {
				if yes {
					return true
				}
				return promptConfirm(message)
			})

			newVersion, err := panel.Rollback(context.Background(), version, confirm)
			if errors.Is(err, revision.ErrRollbackDeclined) {
				fmt.Println("rollback cancelled")
				return
			}
			if err != nil {
				color.Red("rollback failed: %v", err)
				return
			}

			color.Green("rolled back to version %d, current version is %d", version, newVersion)
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	command.Flags().StringVarP(&formID, "form-id", "f", "", "form id")
	command.Flags().Int64VarP(&version, "version", "v", 0, "version to restore (required)")
	command.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func promptConfirm(message string) bool {
	color.Yellow(message)
	fmt.Print("[y/N]: ")

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
