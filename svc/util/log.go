package util

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "crosssync"

var globalLog = newLogger(os.Stdout, false)

// InitLog installs the process logger. Unknown levels fall back to info;
// dev switches to the human-readable console writer.
func InitLog(level string, dev bool) {
	var out io.Writer = os.Stdout
	if dev {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	globalLog = newLogger(out, true)
	log.Logger = globalLog
}

func newLogger(out io.Writer, caller bool) zerolog.Logger {
	ctx := zerolog.New(redactWriter{out: out}).
		With().
		Timestamp().
		Str("service", serviceName)
	if caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// loggedPayload matches a share payload inside an encoded log line. Escaped
// pairs are consumed so a quoted JSON payload ends at its closing quote.
var loggedPayload = regexp.MustCompile(`([?&]data=)(?:\\.|[^&\s"\\])+`)

// redactWriter scrubs share payloads that reach the log without RedactURL.
type redactWriter struct {
	out io.Writer
}

func (w redactWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(loggedPayload.ReplaceAll(p, []byte("${1}[REDACTED]"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Component returns the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return globalLog.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event { return globalLog.Debug() }
func Info() *zerolog.Event  { return globalLog.Info() }
func Warn() *zerolog.Event  { return globalLog.Warn() }
func Error() *zerolog.Event { return globalLog.Error() }
func Fatal() *zerolog.Event { return globalLog.Fatal() }
func GetLogger() zerolog.Logger {
	return globalLog
}
