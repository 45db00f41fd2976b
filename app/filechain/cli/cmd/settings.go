package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var targetCmd = &cobra.Command{
	Use:   "target [n]",
	Short: "Show or set the number of leading zero bits for the next commits",
	Args:  cobra.MaximumNArgs(1),
	RunE:  targetRun,
}

var userCmd = &cobra.Command{
	Use:   "user [name]",
	Short: "Show or switch the owner recorded on staged files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  userRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the program",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Println(build)
	},
}

func init() {
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

func targetRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: target must be a positive number: %q", errUsage, args[0])
		}
		if err := st.SetTarget(uint(n)); err != nil {
			return err
		}
	}

	pterm.Info.Printfln("Target: %d", st.Target())
	return nil
}

func userRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := st.SwitchUser(args[0]); err != nil {
			return err
		}
	}

	pterm.Info.Printfln("User: %s", st.User())
	return nil
}
