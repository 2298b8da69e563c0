package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand 只做建表与索引
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update tables and indexes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, _, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			log.Info("migrate_ok")
			return nil
		},
	}
}
