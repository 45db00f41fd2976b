package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/blockchain/merkle"
	"github.com/ardanlabs/filechain/foundation/blockchain/state"
	"github.com/ardanlabs/filechain/foundation/nameservice"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var printCmd = &cobra.Command{
	Use:   "print [h]",
	Short: "Print the last h blocks of the chain, all of them by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  printRun,
}

var blockCmd = &cobra.Command{
	Use:   "block [index]",
	Short: "Print a block and its tokens, the staging block by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  blockRun,
}

var tokenCmd = &cobra.Command{
	Use:   "token <id>",
	Short: "Print a token and prove it is part of its block",
	Args:  cobra.ExactArgs(1),
	RunE:  tokenRun,
}

var headerCmd = &cobra.Command{
	Use:   "header [index]",
	Short: "Print the serialized header of a block, the staging block by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  headerRun,
}

func init() {
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(headerCmd)
}

func printRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	blocks := st.Chain().Blocks()
	if len(args) == 1 {
		h, err := strconv.Atoi(args[0])
		if err != nil || h < 0 {
			return fmt.Errorf("%w: h must be a positive number: %q", errUsage, args[0])
		}
		if h < len(blocks) {
			blocks = blocks[len(blocks)-h:]
		}
	}

	data := pterm.TableData{
		{"Index", "Hash", "Previous", "Merkle Root", "Target", "Nonce", "Tokens", "Time"},
	}
	for _, block := range append(blocks, st.Staging()) {
		data = append(data, blockRow(block))
	}

	pterm.DefaultSection.Printfln("Chain %s: height %d", st.Chain().Name(), st.Chain().Height())
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func blockRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	index, err := parseIndex(args)
	if err != nil {
		return err
	}

	block, err := st.QueryBlock(index)
	if err != nil {
		return err
	}

	h := block.Header()

	status := "committed"
	if !block.Sealed() {
		status = "staging"
	}

	pterm.DefaultSection.Printfln("Block %d (%s)", block.Index(), status)
	pterm.Printfln("Hash:        %s", block.Hash())
	pterm.Printfln("Previous:    %s", h.PrevHash)
	pterm.Printfln("Merkle Root: %s", h.MerkleRoot)
	pterm.Printfln("Version:     %d", h.Version)
	pterm.Printfln("Target:      %d", h.Target)
	pterm.Printfln("Nonce:       %d", h.Nonce)
	pterm.Printfln("Time:        %s", h.TimeStamp.Format(time.RFC3339))
	pterm.Printfln("Directory:   %s", block.Dir())
	pterm.Println()

	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"Token", "File", "Owner", "Author", "File Hash", "Time"},
	}
	for _, entry := range block.Tokens() {
		tk := entry.Token
		data = append(data, []string{entry.ID.Hex(), tk.FileName, ns.Lookup(tk.Owner), tk.Author, tk.FileHash.Hex(), tk.TimeStamp.Format(time.RFC3339)})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func tokenRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	id, err := digest.ParseHash(args[0])
	if err != nil {
		return err
	}

	tk, block, err := st.FindToken(id)
	if err != nil {
		return err
	}

	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Token %s", id)
	pterm.Printfln("Block:     %d", block.Index())
	pterm.Printfln("Owner:     %s", ns.Lookup(tk.Owner))
	pterm.Printfln("File:      %s", tk.FileName)
	pterm.Printfln("Author:    %s", tk.Author)
	pterm.Printfln("File Hash: %s", tk.FileHash)
	pterm.Printfln("Time:      %s", tk.TimeStamp.Format(time.RFC3339))

	proof, order, err := block.Proof(id)
	if err != nil {
		return err
	}

	root := block.Header().MerkleRoot
	if !merkle.VerifyProof(id[:], proof, order, root[:]) {
		return fmt.Errorf("token %s can't be proven against merkle root %s", id, root)
	}
	pterm.Success.Printfln("Included in merkle root %s with %d proof hashes", root, len(proof))

	if err := tk.Verify(block.Dir()); err != nil {
		pterm.Warning.Println(err)
		return nil
	}
	pterm.Success.Printfln("%s matches its file hash", tk.FileName)

	return nil
}

func headerRun(cmd *cobra.Command, args []string) error {
	st, err := openSession()
	if err != nil {
		return err
	}

	index, err := parseIndex(args)
	if err != nil {
		return err
	}

	header, err := st.Header(index)
	if err != nil {
		return err
	}

	pterm.Println(digest.EncodeHex(header))
	pterm.Info.Printfln("Hash: %s", digest.Sum(header))

	return nil
}

// =============================================================================

// parseIndex reads an optional block index. No index selects the staging
// block.
func parseIndex(args []string) (int, error) {
	if len(args) == 0 {
		return state.QueryStaging, nil
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: index must be a number: %q", errUsage, args[0])
	}

	return index, nil
}

// blockRow formats a block as a table row.
func blockRow(block *database.Block) []string {
	h := block.Header()

	index := strconv.Itoa(block.Index())
	if !block.Sealed() {
		index += " (staging)"
	}

	return []string{
		index,
		short(block.Hash()),
		short(h.PrevHash),
		short(h.MerkleRoot),
		strconv.FormatUint(uint64(h.Target), 10),
		strconv.FormatUint(uint64(h.Nonce), 10),
		strconv.Itoa(block.Len()),
		h.TimeStamp.Format(time.RFC3339),
	}
}

// short abbreviates a hash for display in a table.
func short(h digest.Hash) string {
	s := h.Hex()
	return s[:8] + ".." + s[len(s)-8:]
}
