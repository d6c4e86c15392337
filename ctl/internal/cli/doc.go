// Package cli implements the rollupctl commands: validate, render and repl.
package cli
