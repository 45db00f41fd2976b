// Package cmd contains the filechain app.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/state"
	"github.com/ardanlabs/filechain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/filechain/foundation/events"
	"github.com/ardanlabs/filechain/foundation/logger"
	"github.com/ardanlabs/filechain/foundation/validate"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	build       = "develop"
	chainDir    string
	userName    string
	accountName string
	accountPath string
	target      uint
	timeout     time.Duration
	workers     int
	verbose     bool
)

const (
	keyExtension = ".ecdsa"
)

// session holds the state opened by the first command that needs it. The
// shell keeps it open across commands.
var session struct {
	st       *state.State
	evts     *events.Events
	shutdown func()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&chainDir, "dir", "d", "zblock/chain", "Directory holding the chain.")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", database.DefaultOwner, "Owner recorded on staged files, kept with the chain.")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "Private key whose address becomes the owner of staged files.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().UintVarP(&target, "target", "t", 0, "Leading zero bits required of committed blocks, kept with the chain.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Maximum time to spend mining, zero for no limit.")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of goroutines verifying blocks.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write the log to stderr instead of the log file.")
}

var rootCmd = &cobra.Command{
	Use:           "filechain",
	Short:         "Tamper evident provenance ledger for files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(chainDir)
		if err != nil {
			return err
		}
		chainDir = dir
		return nil
	},
}

// Execute runs the command line and releases the session.
func Execute(version string) {
	build = version

	err := rootCmd.Execute()
	closeSession()

	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError shows a validation failure one field per line.
func printError(err error) {
	if !validate.IsFieldErrors(err) {
		pterm.Error.Println(err)
		return
	}

	for _, fe := range validate.GetFieldErrors(err) {
		pterm.Error.Printfln("%s: %s", fe.Field, fe.Error)
	}
}

// =============================================================================

// openSession opens the chain in the chain directory the first time it is
// called and returns the same state after that. The user and target flags
// given on the command line replace the settings stored with the chain.
func openSession() (*state.State, error) {
	if session.st != nil {
		if err := applyFlags(session.st); err != nil {
			return nil, err
		}
		return session.st, nil
	}

	if err := os.MkdirAll(chainDir, 0755); err != nil {
		return nil, err
	}

	outputPaths := []string{filepath.Join(chainDir, "filechain.log")}
	if verbose {
		outputPaths = []string{"stderr"}
	}

	log, err := logger.New("FILECHAIN", outputPaths...)
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}

	traceID := uuid.NewString()
	evts := events.New()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", traceID)
		evts.Send(s)
	}

	owner, err := resolveOwner()
	if err != nil {
		return nil, err
	}

	strg, err := disk.New(chainDir, filepath.Base(chainDir))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	log.Infow("startup", "traceid", traceID, "version", build, "dir", chainDir, "owner", owner)

	st, err := state.New(state.Config{
		Dir:       chainDir,
		User:      owner,
		Target:    target,
		Storage:   strg,
		EvHandler: ev,
	})
	if err != nil {
		log.Errorw("startup", "traceid", traceID, "ERROR", err)
		log.Sync()
		return nil, err
	}

	session.st = st
	session.evts = evts
	session.shutdown = func() {
		st.Shutdown()
		evts.Shutdown()
		log.Infow("shutdown complete", "traceid", traceID)
		log.Sync()
	}

	if err := applyFlags(st); err != nil {
		return nil, err
	}

	return st, nil
}

// applyFlags stores the user and target flags that were set on the command
// line with the chain.
func applyFlags(st *state.State) error {
	flags := rootCmd.PersistentFlags()

	if flags.Changed("user") || flags.Changed("account") {
		owner, err := resolveOwner()
		if err != nil {
			return err
		}

		if err := st.SwitchUser(owner); err != nil {
			return err
		}
	}

	if flags.Changed("target") {
		if err := st.SetTarget(target); err != nil {
			return err
		}
	}

	return nil
}

// closeSession releases the session if one was opened.
func closeSession() {
	if session.shutdown != nil {
		session.shutdown()
	}
	session.st = nil
	session.evts = nil
	session.shutdown = nil
}

// resolveOwner returns the owner for staged files. A private key takes
// precedence over the user name.
func resolveOwner() (string, error) {
	if accountName == "" {
		return userName, nil
	}

	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return "", fmt.Errorf("loading account %s: %w", accountName, err)
	}

	return database.PublicKeyToOwner(privateKey.PublicKey), nil
}

func getPrivateKeyPath() string {
	name := accountName
	if name == "" {
		name = "private"
	}

	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

// errUsage is returned when a command gets arguments it can't use.
var errUsage = errors.New("invalid arguments")
