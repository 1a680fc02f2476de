package elf

import "github.com/sirupsen/logrus"

var pkgLogger = logrus.New()

func init() {
	pkgLogger.SetLevel(logrus.WarnLevel)
}

// Logger returns the package-level logger used by the instrumentation
// engine for phase-transition diagnostics. Callers embedding this
// library in a larger program can call SetLogger to redirect it into
// their own logging pipeline.
func Logger() *logrus.Logger { return pkgLogger }

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		pkgLogger = l
	}
}
