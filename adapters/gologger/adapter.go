package gologger

import (
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const rootLoggerName = "faceverify"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns the logger for one component, e.g. "faceverify.transport".
func Named(provider glog.LoggerProvider, component string) glog.Logger {
	name := rootLoggerName
	if component = strings.Trim(strings.TrimSpace(component), "."); component != "" {
		name += "." + component
	}
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(name))
}
