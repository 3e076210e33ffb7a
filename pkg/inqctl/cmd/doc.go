// Package cmd implements the inqctl operator commands. They act directly on
// the pipeline's database and mail server, without going through the HTTP API.
package cmd
