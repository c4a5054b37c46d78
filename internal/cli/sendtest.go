package cli

import (
	"github.com/spf13/cobra"
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test FILE",
	Short: "投递一次本地 artifact 以验证 webhook 链路",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SendTest(cmd.Context(), args[0])
	},
}
