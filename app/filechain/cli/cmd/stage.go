package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var stageCmd = &cobra.Command{
	Use:   "stage <path> [author]",
	Short: "Copy a file into the staging block and record its token",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  stageRun,
}

var unstageCmd = &cobra.Command{
	Use:   "unstage",
	Short: "Discard the staging block",
	Args:  cobra.NoArgs,
	RunE:  unstageRun,
}

func init() {
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(unstageCmd)
}

func stageRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	var author string
	if len(args) == 2 {
		author = args[1]
	}

	id, res, err := st.Stage("", args[0], author)
	if err != nil {
		return err
	}

	if res.Overwritten {
		pterm.Warning.Printfln("%s already existed in block %d and was replaced", res.Token.FileName, st.Staging().Index())
	}

	pterm.Success.Printfln("Staged %s into block %d", res.Token.FileName, st.Staging().Index())
	pterm.Info.Printfln("Token: %s", id)

	return nil
}

func unstageRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	if err := st.Unstage(); err != nil {
		return err
	}

	pterm.Success.Printfln("Discarded the staging block, block %d is empty", st.Staging().Index())
	return nil
}
