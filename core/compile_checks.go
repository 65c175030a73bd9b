package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Presenter       = NopPresenter{}
	_ MetricsRecorder = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
