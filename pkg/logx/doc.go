// Package logx is socialia's structured logging on top of zerolog.
//
// Console records go to stderr so command output on stdout stays clean.
// A log file, when enabled, receives JSON. Warnings can also be forwarded
// to a chat through a Notifier, rate limited and never blocking the caller.
package logx
