// Package monitor collects status text from running processes and shows it
// as a table.
//
// A Board owns the STATUS handler of a protocol.Listener. Each STATUS
// signal makes it re-read the sender's side file from a status.Store and
// notify its subscribers with a fresh snapshot. Model renders those
// snapshots in a bubbletea program.
package monitor
