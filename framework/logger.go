package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}

// ToLoggers returns an ldlog.Loggers that sends messages of every level to the given Logger.
// This lets components that log through ldlog write into a test's debug output.
func ToLoggers(l Logger) ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(baseLoggerAdapter{l})
	loggers.SetMinLevel(ldlog.Debug)
	return loggers
}

type baseLoggerAdapter struct {
	target Logger
}

func (a baseLoggerAdapter) Println(values ...interface{}) {
	a.target.Printf("%s", strings.TrimSuffix(fmt.Sprintln(values...), "\n"))
}

func (a baseLoggerAdapter) Printf(format string, values ...interface{}) {
	a.target.Printf(format, values...)
}
