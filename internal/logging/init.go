package logging

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Init configures the process-wide logger: colored text output with
// short caller locations, level picked from the debug, verbose and
// log_level settings (LYSSA_DEBUG, LYSSA_VERBOSE, LYSSA_LOG_LEVEL).
func Init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:            true,
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: false,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf(" %s:%d", filepath.Base(f.File), f.Line)
		},
	})
	logrus.SetReportCaller(true)
	logrus.SetLevel(resolveLevel())
}

func resolveLevel() logrus.Level {
	if viper.GetBool("debug") || viper.GetBool("verbose") {
		return logrus.DebugLevel
	}

	if s := viper.GetString("log_level"); s != "" {
		level, err := logrus.ParseLevel(s)
		if err != nil {
			logrus.Fatalf("parsing log level %q: %v", s, err)
		}
		return level
	}

	return logrus.InfoLevel
}
