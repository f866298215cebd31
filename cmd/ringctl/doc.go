// Package main is ringctl, a command line client for a ringsim server.
//
// Usage:
//
//	ringctl init -buffer 8 -producers 3 -consumers 2 -produce 800ms -consume 1.2s
//	ringctl start
//	ringctl watch -interval 500ms
//	ringctl stop
//	ringctl export -o history.ndjson
//
// The server address comes from -server or RINGSIM_SERVER.
package main
