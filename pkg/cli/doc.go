// Package cli defines the process flags of the inquiry server binary. Every
// flag falls back to an environment variable.
package cli
