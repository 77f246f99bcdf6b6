package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "Lodestone ",
				})
				if lvl, err := log.ParseLevel(os.Getenv("LODESTONE_LOG_LEVEL")); err == nil {
					l.SetLevel(lvl)
				} else {
					l.SetLevel(log.InfoLevel)
				}
				singleton = &logger{l}
			})
	}
	return singleton
}

// SetLogLevel overrides the level picked up from the environment.
func SetLogLevel(level log.Level) {
	getLogger().SetLevel(level)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
