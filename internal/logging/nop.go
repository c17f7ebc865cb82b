package logging

import "github.com/Lucascis/coord/types"

// NopLogger discards all log output.
type NopLogger struct{}

// Compile-time assertion that NopLogger implements Logger.
var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a logger that discards everything.
//
// Used as the default when no logger is injected, so components never need
// nil checks at log sites.
func NewNop() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (*NopLogger) Debug(_ string, _ ...any) {}

// Info discards the message.
func (*NopLogger) Info(_ string, _ ...any) {}

// Warn discards the message.
func (*NopLogger) Warn(_ string, _ ...any) {}

// Error discards the message.
func (*NopLogger) Error(_ string, _ ...any) {}

// Fatal discards the message without exiting. A nop logger must never
// terminate the process.
func (*NopLogger) Fatal(_ string, _ ...any) {}
