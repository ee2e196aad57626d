package audit

import "github.com/spf13/cobra"

// NewAuditCmd returns the parent "audit" command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Work with the request audit stream",
	}
	// attach subcommands
	cmd.AddCommand(tailCmd)

	return cmd
}
