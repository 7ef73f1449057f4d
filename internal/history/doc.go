// Package history keeps a local SQLite ledger of download runs: what
// was requested, how the language decision fell, and where the output
// landed. The ledger backs the `habla history` command.
package history
