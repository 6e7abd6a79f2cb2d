// Package logx configures skysurvey's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, one file per UTC day (<root>_<YYYY-MM-DD>.log)
//   - Optional Telegram sink (min-level + rate limiting)
//
// Loggers are plain values passed into each component; there is no package-level
// logger. The zero Logger is a safe no-op.
package logx
