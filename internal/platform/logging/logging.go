package logging

import (
	"github.com/sirupsen/logrus"
)

// Init configures the process-wide logrus logger. Components obtain
// contextual entries via logrus.WithField and never construct their own
// logger instance.
func Init(level, format string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
