package database_test

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_TokenHash(t *testing.T) {
	tk := database.Token{
		Owner:     "@admin",
		FileName:  "report.txt",
		Author:    "bill",
		TimeStamp: time.Unix(1700000000, 0).UTC(),
		FileHash:  digest.Sum([]byte("hello")),
	}

	t.Log("Given the need to derive the identity of a token.")
	{
		t.Logf("\tTest 0:\tWhen handling a token with a known timestamp.")
		{
			exp := []byte("@adminreport.txtbill")
			exp = append(exp, tk.FileHash[:]...)
			exp = binary.BigEndian.AppendUint32(exp, 1700000000)

			got := tk.CanonicalBytes()
			if string(got) != string(exp) {
				t.Logf("\t%s\tTest 0:\tgot: %x", failed, got)
				t.Logf("\t%s\tTest 0:\texp: %x", failed, exp)
				t.Fatalf("\t%s\tTest 0:\tShould encode the canonical bytes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould encode the canonical bytes.", success)

			if tk.Hash() != digest.Sum(exp) {
				t.Fatalf("\t%s\tTest 0:\tShould hash the canonical bytes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hash the canonical bytes.", success)

			other := tk
			other.Author = "ed"
			if other.Hash() == tk.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould change the hash when a field changes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould change the hash when a field changes.", success)
		}
	}
}

func Test_NewToken(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.md", "some notes")

	t.Log("Given the need to construct tokens from files.")
	{
		t.Logf("\tTest 0:\tWhen reading an existing file.")
		{
			before := time.Now().UTC().Truncate(time.Second)

			tk, err := database.NewToken("kevin", path, "ada")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the token: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to construct the token.", success)

			if tk.FileName != "notes.md" {
				t.Fatalf("\t%s\tTest 0:\tShould use the last path component, got %q.", failed, tk.FileName)
			}
			t.Logf("\t%s\tTest 0:\tShould use the last path component.", success)

			if tk.FileHash != digest.Sum([]byte("some notes")) {
				t.Fatalf("\t%s\tTest 0:\tShould digest the file content.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould digest the file content.", success)

			if tk.TimeStamp.Before(before) || tk.TimeStamp.Nanosecond() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould stamp the current time in whole seconds, got %s.", failed, tk.TimeStamp)
			}
			t.Logf("\t%s\tTest 0:\tShould stamp the current time in whole seconds.", success)

			if err := tk.Verify(dir); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify against the untouched file: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify against the untouched file.", success)
		}

		t.Logf("\tTest 1:\tWhen reading a file that does not exist.")
		{
			_, err := database.NewToken("kevin", filepath.Join(dir, "missing.txt"), "ada")

			var ioErr *database.IOError
			if !errors.As(err, &ioErr) {
				t.Fatalf("\t%s\tTest 1:\tShould get an IOError: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get an IOError.", success)

			if !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("\t%s\tTest 1:\tShould unwrap to the file system error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould unwrap to the file system error.", success)
		}
	}
}

func Test_TokenVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "original")

	tk, err := database.NewToken("kevin", path, "ada")
	if err != nil {
		t.Fatalf("Should be able to construct the token: %v", err)
	}

	t.Log("Given the need to detect a file that changed after it was tokenised.")
	{
		t.Logf("\tTest 0:\tWhen the file content is altered.")
		{
			writeFile(t, dir, "data.bin", "Original")

			err := tk.Verify(dir)

			var tme *database.TokenMismatchError
			if !errors.As(err, &tme) {
				t.Fatalf("\t%s\tTest 0:\tShould get a TokenMismatchError: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a TokenMismatchError.", success)

			if tme.FileName != "data.bin" || tme.Expected != tk.FileHash || tme.Actual != digest.Sum([]byte("Original")) {
				t.Fatalf("\t%s\tTest 0:\tShould name the file and both digests: %v", failed, tme)
			}
			t.Logf("\t%s\tTest 0:\tShould name the file and both digests.", success)
		}

		t.Logf("\tTest 1:\tWhen the file is removed.")
		{
			if err := os.Remove(path); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to remove the file: %v", failed, err)
			}

			err := tk.Verify(dir)
			if !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("\t%s\tTest 1:\tShould report the missing file: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould report the missing file.", success)
		}
	}
}

func Test_FileName(t *testing.T) {
	type table struct {
		name string
		exp  string
	}

	// A backslash is a legal file name character here, so a file written on
	// another platform can be simulated in the temp directory.
	tt := []table{
		{name: "a.txt", exp: "a.txt"},
		{name: `Users\bill\b.txt`, exp: "b.txt"},
		{name: `C:\c.txt`, exp: "c.txt"},
	}

	if runtime.GOOS == "windows" {
		t.Skip("backslash is a separator on windows")
	}

	dir := t.TempDir()

	t.Log("Given the need to take the file name from either separator.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling file %q.", testID, tst.name)
			{
				path := writeFile(t, dir, tst.name, "x")

				tk, err := database.NewToken("o", path, "a")
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to construct the token: %v", failed, testID, err)
				}

				if tk.FileName != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %q, got %q.", failed, testID, tst.exp, tk.FileName)
				}
				t.Logf("\t%s\tTest %d:\tShould get %q.", success, testID, tst.exp)
			}
		}
	}
}

// =============================================================================

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Should be able to write %s: %v", path, err)
	}

	return path
}
