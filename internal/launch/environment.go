package launch

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
)

// pathKey is the name of the search-path variable. Windows treats
// environment names case-insensitively, so it is matched loosely there.
const pathKey = "PATH"

// ParseEnviron converts a KEY=VALUE list (as returned by os.Environ) into a
// map. Entries without '=' are ignored; later duplicates win.
func ParseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		env[key] = value
	}

	return env
}

// OverlayEnvironment builds the child environment from base, an optional
// PATH prefix, and overrides. The inputs are not modified.
func OverlayEnvironment(base map[string]string, pathPrefix string, overrides map[string]string) map[string]string {
	env := maps.Clone(base)
	if env == nil {
		env = make(map[string]string, len(overrides)+1)
	}

	if pathPrefix != "" {
		key := lookupPathKey(env)

		if current := env[key]; current != "" {
			env[key] = pathPrefix + string(os.PathListSeparator) + current
		} else {
			env[key] = pathPrefix
		}
	}

	maps.Copy(env, overrides)

	return env
}

// Environ converts an environment map into a sorted KEY=VALUE list suitable
// for exec.Cmd.Env.
func Environ(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}

	return out
}

// SearchPath returns the PATH value from env.
func SearchPath(env map[string]string) string {
	return env[lookupPathKey(env)]
}

// lookupPathKey returns the key under which PATH is stored in env.
func lookupPathKey(env map[string]string) string {
	if runtime.GOOS != "windows" {
		return pathKey
	}

	for key := range env {
		if strings.EqualFold(key, pathKey) {
			return key
		}
	}

	return pathKey
}
