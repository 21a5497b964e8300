// Package commands defines the qukeyctl CLI and wires the key manager client
// for subcommands.
//
// Commands
//
//   - generate  Generate a fresh one-time-pad key for a user
//   - fetch     Fetch a key copy without consuming it
//   - consume   Mark a key copy used
//   - share     Give a recipient their own copy of a key
//   - hash      Print a key's fingerprint
//   - list      List a user's keys
//   - stats     Summarize a user's keys by status
//   - sweep     Mark all overdue key copies expired
//   - health    Check the service
//
// # Implementation
//
// The root command builds one kmclient.Client from the persistent --server
// and --token flags before any subcommand runs. Verbs that act on a specific
// holder's copy take the holder from --user; share and sweep need the
// server's service token.
package commands
