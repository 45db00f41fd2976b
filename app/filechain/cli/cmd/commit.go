package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ardanlabs/filechain/foundation/events"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Mine the staging block and append it to the chain",
	Args:  cobra.NoArgs,
	RunE:  commitRun,
}

func init() {
	rootCmd.AddCommand(commitCmd)
}

func commitRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p := startProgress(pterm.Sprintf("Mining block %d at target %d", st.Staging().Index(), st.Target()))

	// Relay the mining events to the display until the commit returns.
	const id = "commit"
	ch := session.evts.Acquire(id, "Mine")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range ch {
			p.update(e)
		}
	}()

	hash, err := st.Commit(ctx)

	session.evts.Release(id)
	wg.Wait()

	if err != nil {
		p.fail("Commit failed")
		return err
	}

	p.success(pterm.Sprintf("Committed block %d", st.Chain().Height()-1))
	pterm.Info.Printfln("Hash: %s", hash)

	return nil
}

// =============================================================================

// progress shows mining events on a spinner. Without a spinner the events
// are printed as lines.
type progress struct {
	spinner *pterm.SpinnerPrinter
}

func startProgress(text string) progress {
	spinner, err := pterm.DefaultSpinner.Start(text)
	if err != nil {
		pterm.Warning.Printfln("spinner unavailable: %s", err)
		pterm.Info.Println(text)
		return progress{}
	}

	return progress{spinner: spinner}
}

func (p progress) update(e events.Event) {
	if p.spinner == nil {
		pterm.Info.Println(e.Text)
		return
	}
	p.spinner.UpdateText(e.Text)
}

func (p progress) fail(text string) {
	if p.spinner == nil {
		pterm.Error.Println(text)
		return
	}
	p.spinner.Fail(text)
}

func (p progress) success(text string) {
	if p.spinner == nil {
		pterm.Success.Println(text)
		return
	}
	p.spinner.Success(text)
}
