package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// Test Plan for the command scripts:
// - Every testdata/*.txt archive is a project: its files are written to a
//   fresh root directory
// - Each line of the archive comment is one relocate invocation run against
//   that root; blank lines and lines starting with # are skipped
// - Command errors are printed to stderr as "ERROR: <err>"
// - The combined stdout and stderr must equal the archive's stdout and stderr
//   files, ignoring trailing spaces

func TestScripts(t *testing.T) {
	t.Parallel()

	files, err := filepath.Glob("testdata/*.txt")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no test cases")

	for _, file := range files {
		file := file
		t.Run(filepath.Base(file), func(t *testing.T) {
			t.Parallel()

			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)

			dir := t.TempDir()
			var wantStdout, wantStderr txtar.File
			for _, f := range ar.Files {
				switch f.Name {
				case "stdout":
					wantStdout = f
					continue
				case "stderr":
					wantStderr = f
					continue
				}
				targ := filepath.Join(dir, f.Name)
				require.NoError(t, os.MkdirAll(filepath.Dir(targ), 0755))
				require.NoError(t, os.WriteFile(targ, f.Data, 0644))
			}

			var stdout, stderr bytes.Buffer
			for _, line := range strings.Split(string(ar.Comment), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				args := append(strings.Fields(line), "--root", dir)
				if err := run(args, &stdout, &stderr); err != nil {
					fmt.Fprintf(&stderr, "ERROR: %v\n", err)
				}
			}

			cmp := func(name string, have, want []byte) {
				have = trimSpace(have)
				want = trimSpace(want)
				if !bytes.Equal(have, want) {
					t.Errorf("%s:\n%s", name, have)
					t.Errorf("want:\n%s", want)
				}
			}
			cmp("stderr", stderr.Bytes(), wantStderr.Data)
			cmp("stdout", stdout.Bytes(), wantStdout.Data)
		})
	}
}

func trimSpace(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " ")
	}
	return bytes.Join(lines, []byte("\n"))
}
