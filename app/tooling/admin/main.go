// This program performs administrative tasks for the filechain ledger.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/filechain/app/tooling/admin/commands"
	"github.com/ardanlabs/filechain/foundation/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		if !errors.Is(err, commands.ErrHelp) {
			log.Errorw("admin", "ERROR", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Args  conf.Args
		Chain struct {
			Dir     string `conf:"default:zblock/chain"`
			Workers int    `conf:"default:4"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "filechain administration",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// Commands

	traceID := uuid.NewString()
	log.Infow("admin", "traceid", traceID, "version", build, "command", cfg.Args.Num(0))

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", traceID)
	}

	return processCommands(cfg.Args, commands.Config{
		ChainDir:  cfg.Chain.Dir,
		Workers:   cfg.Chain.Workers,
		EvHandler: ev,
	})
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, cfg commands.Config) error {
	switch args.Num(0) {
	case "sha256":
		if err := commands.SHA256(args.Num(1)); err != nil {
			return fmt.Errorf("hashing text: %w", err)
		}

	case "sha256-hex":
		if err := commands.SHA256Hex(args.Num(1)); err != nil {
			return fmt.Errorf("hashing hex: %w", err)
		}

	case "sha256-file":
		if err := commands.SHA256File(args.Num(1)); err != nil {
			return fmt.Errorf("hashing file: %w", err)
		}

	case "pow":
		if err := commands.ProofOfWork(args.Num(1), args.Num(2)); err != nil {
			return fmt.Errorf("checking proof of work: %w", err)
		}

	case "header":
		if err := commands.Header(cfg, args.Num(1)); err != nil {
			return fmt.Errorf("exporting header: %w", err)
		}

	case "header-parse":
		if err := commands.ParseHeader(args.Num(1)); err != nil {
			return fmt.Errorf("parsing header: %w", err)
		}

	case "verify":
		if err := commands.Verify(cfg); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}

	default:
		fmt.Println("sha256 <text>:         digest of the utf-8 text")
		fmt.Println("sha256-hex <hex>:      digest of the hex encoded bytes")
		fmt.Println("sha256-file <path>:    digest of the file content")
		fmt.Println("pow <hash> <target>:   check a hex hash against a target")
		fmt.Println("header [index]:        serialized header of a block, staging by default")
		fmt.Println("header-parse <hex>:    fields of a serialized header")
		fmt.Println("verify:                verify the chain in the chain directory")
		fmt.Println("provide a command to get more help.")
		return commands.ErrHelp
	}

	return nil
}
