// Package launch prepares the command line and environment for an MCP
// server process.
//
// This package provides two capabilities:
//
// # Environment Overlay
//
// OverlayEnvironment merges the parent environment, an optional PATH prefix
// and caller-supplied overrides into a new map without mutating the process
// environment:
//
//	env := launch.OverlayEnvironment(launch.ParseEnviron(os.Environ()), "/opt/homebrew/bin", cfg.Env)
//
// Later layers win on key collision: overrides beat the PATH prefix, which
// beats the parent value.
//
// # Executable Resolution
//
// ResolveExecutable locates the server executable against the PATH of the
// overlaid environment rather than the parent's, so a PATH prefix or
// override takes effect for lookup as well as for the child itself.
package launch
