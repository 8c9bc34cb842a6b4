package logger

// noopLogger discards everything. Used by library callers that want
// shelf's internal call sites to stay instrumented without requiring
// every embedder to wire up zerolog.
type noopLogger struct{}

// NewNoOp returns a Logger whose methods do nothing, Panicln/Panicf and
// Fatalln/Fatalf included: unlike a real logger, NewNoOp never
// terminates the process.
func NewNoOp() Logger { return noopLogger{} }

func (noopLogger) Panicln(v ...any)               {}
func (noopLogger) Panicf(format string, v ...any) {}
func (noopLogger) Fatalln(v ...any)               {}
func (noopLogger) Fatalf(format string, v ...any) {}
func (noopLogger) Errorln(v ...any)               {}
func (noopLogger) Errorf(format string, v ...any) {}
func (noopLogger) Warnln(v ...any)                {}
func (noopLogger) Warnf(format string, v ...any)  {}
func (noopLogger) Infoln(v ...any)                {}
func (noopLogger) Infof(format string, v ...any)  {}
func (noopLogger) Debugln(v ...any)               {}
func (noopLogger) Debugf(format string, v ...any) {}
func (noopLogger) Traceln(v ...any)               {}
func (noopLogger) Tracef(format string, v ...any) {}
