package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log = newLogger()

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:      true,
		DisableTimestamp: true,
	})

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// Scope returns an entry tagged with the component name, the way every
// package in this module logs.
func Scope(name string) *logrus.Entry {
	return Log.WithField("scope", name)
}

// SetLevel switches the shared logger to the named level. Unknown names are
// reported and leave the level untouched.
func SetLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Log.Warnf("unknown log level %q, keeping %s", level, Log.GetLevel())
		return
	}
	Log.SetLevel(lvl)
}
