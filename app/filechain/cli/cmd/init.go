package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new chain in the chain directory",
	Args:  cobra.NoArgs,
	RunE:  initRun,
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing chain.")
	rootCmd.AddCommand(initCmd)
}

func initRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	if st.Chain().Height() > 0 || st.Staging().Len() > 0 {
		if !force {
			return fmt.Errorf("chain %s already exists in %s, use --force to replace it", st.Chain().Name(), st.Chain().Dir())
		}

		if err := st.Truncate(); err != nil {
			return err
		}
	}

	if err := st.Save(); err != nil {
		return err
	}

	pterm.Success.Printfln("Initialised chain %s in %s", st.Chain().Name(), st.Chain().Dir())
	return nil
}
