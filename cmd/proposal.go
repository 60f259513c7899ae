package cmd

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "proposal commands",
}

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "form commands",
}

func init() {
	rootCmd.AddCommand(proposalCmd)
	proposalCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	proposalCmd.AddCommand(createProposalCmd())

	rootCmd.AddCommand(formCmd)
	formCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	formCmd.AddCommand(createFormCmd())
	formCmd.AddCommand(listFormsCmd())
}

func createProposalCmd() *cobra.Command {
	var proposalID string
	var title string

	var required = []string{"title"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "register a proposal",
		Example: "rev proposal create -p <proposal-id> -t <title>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			proposal, err := newClient().CreateProposal(context.Background(), proposalID, title)
			if err != nil {
				logrus.Error(err)
				return
			}

			color.Green("proposal created with id: %s", proposal.ID)
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (generated when empty)")
	command.Flags().StringVarP(&title, "title", "t", "", "title of the proposal (required)")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func createFormCmd() *cobra.Command {
	var proposalID string
	var formID string
	var name string

	var required = []string{"proposal-id", "name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "register a form under a proposal",
		Example: "rev form create -p <proposal-id> -f <form-id> -n <name>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			form, err := newClient().CreateForm(context.Background(), proposalID, formID, name)
			if err != nil {
				logrus.Error(err)
				return
			}

			color.Green("form created with id: %s", form.ID)
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	command.Flags().StringVarP(&formID, "form-id", "f", "", "form id (generated when empty)")
	command.Flags().StringVarP(&name, "name", "n", "", "name of the form (required)")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func listFormsCmd() *cobra.Command {
	var proposalID string

	var required = []string{"proposal-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the forms of a proposal",
		Example: "rev form list -p <proposal-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			forms, err := newClient().ListForms(context.Background(), proposalID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name", "Created At"})
			for _, form := range forms {
				table.Append([]string{form.ID, form.Name, form.CreatedAt.Local().Format(timeFormat)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&proposalID, "proposal-id", "p", "", "proposal id (required)")
	bindContextFlags(command)

	return command
}
