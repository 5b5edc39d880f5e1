// Package gethlog is a small leveled logger in the geth/log15 tradition:
// key/value context pairs, a captured call site, and colorized terminal
// output when attached to one. It is built on go-stack/stack, fatih/color,
// mattn/go-colorable and mattn/go-isatty, the same stack gtos's own `log`
// package depends on.
package gethlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a log severity, ordered from most to least verbose.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRCE"
	case LevelDebug:
		return "DBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "EROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LevelTrace: color.New(color.FgHiBlack),
	LevelDebug: color.New(color.FgBlue),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelCrit:  color.New(color.FgHiRed, color.Bold),
}

// Logger emits leveled, key/value-annotated log lines.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	out *handler
}

type handler struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
	minLevel Level
}

// Root is the process-wide default logger, writing to stderr.
var Root Logger = newRootLogger()

func newRootLogger() *logger {
	w := colorable.NewColorable(os.Stderr)
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	return &logger{out: &handler{w: w, useColor: useColor, minLevel: LevelInfo}}
}

// SetLevel adjusts the minimum level Root emits.
func SetLevel(l Level) {
	root := Root.(*logger)
	root.out.mu.Lock()
	defer root.out.mu.Unlock()
	root.out.minLevel = l
}

// New returns a child logger carrying additional key/value context, the
// geth/log15 convention for deriving per-component loggers
// (log.New("module", "validator")).
func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged, out: l.out}
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LevelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LevelInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LevelError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LevelCrit, msg, ctx) }

func (l *logger) write(level Level, msg string, ctx []interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if level < l.out.minLevel {
		return
	}

	var b strings.Builder
	ts := time.Now().Format("01-02|15:04:05.000")
	site := callSite()

	if l.out.useColor {
		levelColor[level].Fprint(&b, level.String())
	} else {
		b.WriteString(level.String())
	}
	fmt.Fprintf(&b, "[%s] %-40s", ts, msg)

	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintf(&b, " site=%s\n", site)

	io.WriteString(l.out.w, b.String())
}

// callSite returns the file:line of the first frame outside this package,
// using go-stack/stack the same way geth's log package does.
func callSite() string {
	for _, c := range stack.Trace().TrimRuntime() {
		frame := fmt.Sprintf("%+v", c)
		if !strings.Contains(frame, "internal/gethlog") {
			return frame
		}
	}
	return "unknown"
}

// New is a convenience that derives a named child of Root, e.g.
// gethlog.New("module", "validator").
func New(ctx ...interface{}) Logger {
	return Root.New(ctx...)
}
