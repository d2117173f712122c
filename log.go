package expconf

import "go.uber.org/zap"

// pkgLogger is a nop by default so the library stays silent unless the
// application wires its own logger in.
var pkgLogger = zap.NewNop()

// SetLogger installs the logger used for resolution failures and watcher
// events. A nil logger is ignored.
func SetLogger(l *zap.Logger) {
	if l != nil {
		pkgLogger = l
	}
}

func logger() *zap.Logger {
	return pkgLogger
}
