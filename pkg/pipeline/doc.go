// Package pipeline builds the inquiry pipeline from configuration. The server
// and the operator CLI share it so both act on the same stores.
package pipeline
