package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run commands one line at a time against one open chain",
	Args:  cobra.NoArgs,
	RunE:  shellRun,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func shellRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	in := newLineReader(os.Stdin)

	// The first line names the user, an empty line keeps the current one.
	name, err := in.prompt("What is your name?", st.User())
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}

	if name = strings.TrimSpace(name); name != st.User() {
		if err := st.SwitchUser(name); err != nil {
			return err
		}
	}

	pterm.Info.Printfln("Chain %s: height %d: user %s: type help for commands, quit to leave", st.Chain().Name(), st.Chain().Height(), st.User())

	flags := snapshotFlags(rootCmd)
	for {
		line, err := in.prompt(st.User()+">", "")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "shell":
			pterm.Warning.Println("already in the shell")
			continue
		}

		if err := runLine(flags, fields); err != nil {
			printError(err)
		}
	}
}

// runLine executes one shell line as a command line. The flags are put back
// first so a line never inherits the flags of the lines before it.
func runLine(flags flagValues, fields []string) error {
	if err := flags.restore(rootCmd); err != nil {
		return err
	}

	rootCmd.SetArgs(fields)
	return rootCmd.Execute()
}

// =============================================================================

// flagValues holds the value every flag of the command tree had when the
// shell started.
type flagValues map[*pflag.Flag]string

func snapshotFlags(cmd *cobra.Command) flagValues {
	values := make(flagValues)
	visitFlags(cmd, func(f *pflag.Flag) {
		values[f] = f.Value.String()
	})

	return values
}

// restore sets every flag back to its value at the start of the shell, or
// its default for flags cobra added since, and clears Changed. The flags
// given to the shell itself were applied when the session was opened.
func (fv flagValues) restore(cmd *cobra.Command) error {
	var err error
	visitFlags(cmd, func(f *pflag.Flag) {
		v, exists := fv[f]
		if !exists {
			v = f.DefValue
		}

		if serr := f.Value.Set(v); serr != nil && err == nil {
			err = fmt.Errorf("resetting flag %s: %w", f.Name, serr)
		}
		f.Changed = false
	})

	return err
}

// visitFlags calls fn for the local and persistent flags of the command and
// all of its subcommands.
func visitFlags(cmd *cobra.Command, fn func(f *pflag.Flag)) {
	cmd.Flags().VisitAll(fn)
	cmd.PersistentFlags().VisitAll(fn)

	for _, c := range cmd.Commands() {
		visitFlags(c, fn)
	}
}

// =============================================================================

// lineReader reads shell input. A terminal gets an interactive pterm prompt.
// Piped input has no terminal for the prompt to drive, so it is scanned one
// line per prompt.
type lineReader struct {
	interactive bool
	scanner     *bufio.Scanner
}

func newLineReader(f *os.File) *lineReader {
	if term.IsTerminal(int(f.Fd())) {
		return &lineReader{interactive: true}
	}

	return &lineReader{scanner: bufio.NewScanner(f)}
}

// prompt reads one line. An empty line gives the default value. The end of
// piped input is reported as io.EOF.
func (lr *lineReader) prompt(text string, defaultValue string) (string, error) {
	if lr.interactive {
		line, err := pterm.DefaultInteractiveTextInput.WithDefaultText(text).WithDefaultValue(defaultValue).Show()
		if err != nil {
			return "", err
		}
		pterm.Println()

		if strings.TrimSpace(line) == "" {
			return defaultValue, nil
		}
		return line, nil
	}

	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	line := lr.scanner.Text()
	if strings.TrimSpace(line) == "" {
		return defaultValue, nil
	}
	return line, nil
}
