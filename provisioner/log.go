package provisioner

import (
	"github.com/the-lightning-land/wifiprovd/authorize"
	"github.com/the-lightning-land/wifiprovd/connect"
	"github.com/the-lightning-land/wifiprovd/scan"
)

// Logger is handed down to all services, so it has to satisfy each of
// their loggers.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	_ authorize.Logger = (Logger)(nil)
	_ connect.Logger   = (Logger)(nil)
	_ scan.Logger      = (Logger)(nil)
)

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Warnf(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}
