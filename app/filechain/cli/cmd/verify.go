package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-derive every hash of the chain from the files on disk",
	Args:  cobra.NoArgs,
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	if err := st.Verify(workers); err != nil {
		return err
	}

	pterm.Success.Printfln("Chain %s verified: %d blocks, %d staged tokens", st.Chain().Name(), st.Chain().Height(), st.Staging().Len())
	return nil
}
