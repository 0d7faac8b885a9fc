package gpu

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var loggerPtr atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	loggerPtr.Store(l)
}

// SetLogger routes the package's diagnostics to l. Passing nil restores the
// default warn-level logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
		l.SetLevel(logrus.WarnLevel)
	}
	loggerPtr.Store(l)
}

func slogger() *logrus.Logger { return loggerPtr.Load() }
