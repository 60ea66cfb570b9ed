// Package logging wraps zap with context-aware methods.
//
// Every method takes a context.Context; the user key and request ID stored
// with WithUserKey and WithRequestID are attached to each entry, along with
// trace and span IDs when an OpenTelemetry span is active.
//
// Conversational text is never logged. Use TextLen to record its size.
//
// Tests use NewTestLogger:
//
//	tl := logging.NewTestLogger()
//	svc := memory.NewService(store, idx, tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "semantic retrieval failed")
package logging
