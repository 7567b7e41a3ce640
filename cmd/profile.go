package cmd

import (
	"fmt"
	"log/slog"

	"github.com/grafana/pyroscope-go"
)

// startProfiler streams CPU and memory profiles to a Pyroscope server until
// the returned function is called.
func startProfiler(addr, version string, log *slog.Logger) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "bolt",
		ServerAddress:   addr,
		Tags: map[string]string{
			"version": version,
		},
		Logger: profileLogger{log: log.With("component", "profiler")},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = profiler.Stop()
	}, nil
}

type profileLogger struct {
	log *slog.Logger
}

func (l profileLogger) Infof(format string, args ...any)  { l.log.Info(fmt.Sprintf(format, args...)) }
func (l profileLogger) Debugf(format string, args ...any) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l profileLogger) Errorf(format string, args ...any) { l.log.Error(fmt.Sprintf(format, args...)) }
