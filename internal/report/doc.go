// Package report decodes the line-oriented JSON output of a DVL A50.
//
// The DVL pushes two kinds of telemetry (velocity-and-transducer reports and
// dead reckoning reports) and answers commands with response lines. Parse
// turns one line into the matching typed value:
//
//	msg, err := report.Parse(log, line)
//	switch m := msg.(type) {
//	case *report.VelocityReport:
//	case *report.DeadReckoningReport:
//	case *report.CommandReply:
//	}
//
// Unknown report types return errors.ErrUnknownMessageType so callers can
// skip them without treating the line as malformed.
package report
