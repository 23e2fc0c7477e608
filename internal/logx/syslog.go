package logx

import (
	"io"
	"time"

	"github.com/crewjam/rfc5424"
)

// SyslogRelay ships the same log lines as RFC5424 syslog messages, for
// operators who already centralize logs that way. This is ambient and
// optional: the profiler's required log sink is the pipe-delimited
// ChannelRelay; this is a second Relay an operator may additionally
// attach.
type SyslogRelay struct {
	Writer   io.Writer
	Hostname string
	AppName  string
}

// priority maps a Level onto an RFC5424 facility|severity, using the
// user-level facility throughout.
func (lvl Level) priority() rfc5424.Priority {
	switch lvl {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL, FATAL:
		return rfc5424.User | rfc5424.Crit
	}
	return rfc5424.User | rfc5424.Debug
}

func (s SyslogRelay) WriteLog(line string) error {
	m := rfc5424.Message{
		Priority:  INFO.priority(),
		Timestamp: time.Now(),
		Hostname:  s.Hostname,
		AppName:   s.AppName,
		MessageID: "flowprofiler",
		Message:   []byte(line),
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = s.Writer.Write(b)
	return err
}
