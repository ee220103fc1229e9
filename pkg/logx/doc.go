// Package logx configures the daemon's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime reconfiguration (level/sinks) without replacing loggers held
//     by long-lived components
package logx
