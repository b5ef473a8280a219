// Command ptyctl is the command-line client for ptyd.
//
// Usage:
//
//	ptyctl create dev --spawn
//	ptyctl write dev 'ls -la'
//	ptyctl attach dev
//	ptyctl ls --json
//
// The daemon address comes from --server or PTYD_URL.
package main
