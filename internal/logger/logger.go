// Package logger provides the service logger: gommon's levelled logger (the
// one echo uses) plus an optional Rollbar sink for errors.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/rollbar/rollbar-go"

	"academy-storefront/internal/config"
)

const (
	jsonHeader = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`
	textHeader = `${time_rfc3339} ${level} ${prefix} ${short_file}:${line}`
)

type Logger struct {
	*log.Logger
	reporting bool
}

func New(prefix string, env config.Environment, logCfg config.Log, rbCfg config.Rollbar) *Logger {
	return newLogger(prefix, os.Stdout, env, logCfg, rbCfg)
}

func newLogger(prefix string, w io.Writer, env config.Environment, logCfg config.Log, rbCfg config.Rollbar) *Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(logCfg.Level))
	if strings.EqualFold(logCfg.Format, "text") {
		l.SetHeader(textHeader)
	} else {
		l.SetHeader(jsonHeader)
	}

	reporting := rbCfg.Token != ""
	if reporting {
		rollbar.SetToken(rbCfg.Token)
		rollbar.SetEnvironment(env.Name)
		rollbar.SetCodeVersion(rbCfg.CodeVersion)
		if host, err := os.Hostname(); err == nil {
			rollbar.SetServerHost(host)
		}
	}
	rollbar.SetEnabled(reporting)

	return &Logger{Logger: l, reporting: reporting}
}

// ParseLevel maps LOG_LEVEL values onto gommon levels. Unknown values mean INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// Report logs err and forwards it to Rollbar together with extras.
func (l *Logger) Report(err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	if len(extras) > 0 {
		l.Errorf("%v %v", err, extras)
	} else {
		l.Error(err)
	}
	if l.reporting {
		rollbar.ErrorWithExtras(rollbar.ERR, err, extras)
	}
}

// Close flushes pending Rollbar items.
func (l *Logger) Close() {
	if l.reporting {
		rollbar.Close()
	}
}
