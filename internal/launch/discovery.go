package launch

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/wagiedev/mcp-depscore-agent/internal/errors"
)

// ResolveExecutable locates command using the PATH found in env.
//
// A command containing a path separator is checked as-is. Otherwise each
// absolute PATH entry is searched in order; relative entries are skipped. Returns the path of the executable, or a
// *errors.SpawnError listing the searched directories.
func ResolveExecutable(command string, env map[string]string) (string, error) {
	if command == "" {
		return "", &errors.SpawnError{Command: command, Err: fmt.Errorf("empty command")}
	}

	if strings.ContainsRune(command, os.PathSeparator) || strings.Contains(command, "/") {
		if err := checkExecutable(command); err != nil {
			return "", &errors.SpawnError{
				Command:       command,
				SearchedPaths: []string{command},
				Err:           err,
			}
		}

		return command, nil
	}

	dirs := filepath.SplitList(SearchPath(env))
	searched := make([]string, 0, len(dirs))

	for _, dir := range dirs {
		// Relative entries, including the empty one, would resolve against
		// the working directory; exec refuses those with exec.ErrDot.
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}

		searched = append(searched, dir)

		for _, candidate := range candidates(filepath.Join(dir, command), env) {
			if checkExecutable(candidate) == nil {
				return candidate, nil
			}
		}
	}

	return "", &errors.SpawnError{
		Command:       command,
		SearchedPaths: searched,
		Err:           exec.ErrNotFound,
	}
}

// candidates expands a base path with PATHEXT suffixes on Windows.
func candidates(base string, env map[string]string) []string {
	if runtime.GOOS != "windows" {
		return []string{base}
	}

	exts := env["PATHEXT"]
	if exts == "" {
		exts = ".com;.exe;.bat;.cmd"
	}

	out := []string{base}
	for ext := range strings.SplitSeq(strings.ToLower(exts), ";") {
		if ext != "" {
			out = append(out, base+ext)
		}
	}

	return out
}

// checkExecutable reports whether path names a regular executable file.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode()
	if mode.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	if runtime.GOOS != "windows" && mode&0o111 == 0 {
		return fs.ErrPermission
	}

	return nil
}
