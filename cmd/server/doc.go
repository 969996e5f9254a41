// Package main is the entry point for the terminal bridge server.
//
// The server exposes interactive shell sessions over WebSocket and a REST
// surface for programmatic command execution:
//
//	Client (WebSocket) → TerminalSession → PTY → shell
//	Automation (REST)  → CommandExecutor → PTY → shell
//
// The server provides:
//   - WebSocket terminal streaming with risk assessment
//   - REST API for session lifecycle and command execution
//   - Transcript persistence per session
//   - Rate limiting and Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8030
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
