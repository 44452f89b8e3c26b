// Package aria2 is a client for the aria2 download daemon's JSON-RPC interface
// and a supervisor for the daemon process itself.
//
// Every request carries the shared-secret token as its first positional
// parameter. Numeric fields travel as decimal strings on the wire and are
// decoded into Int64 values; a malformed number is a decode error, never a
// silent zero.
package aria2
