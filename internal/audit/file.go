package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

const (
	sourceKey    = "source"
	sourcePoller = "poller"
	sourceEngine = "engine"
)

// FileLoggerConfig is the configuration for the file audit logger.
type FileLoggerConfig struct {
	// Dir is where the session files are created. Empty disables the audit.
	Dir    string
	Logger log.Logger
	// TimeNow is used to name the session files and stamp the lines.
	TimeNow func() time.Time
}

func (c *FileLoggerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "audit.FileLogger"})

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	return nil
}

// NewFileLogger returns an audit logger that writes every session on a new file
// named after the session start time (`HH-MM-SS-mmm_DD-MM-YYYY.log`).
func NewFileLogger(cfg FileLoggerConfig) (Logger, error) {
	if cfg.Dir == "" {
		return Noop, nil
	}

	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &fileLogger{
		dir:    cfg.Dir,
		logger: cfg.Logger,
		now:    cfg.TimeNow,
	}, nil
}

type fileLogger struct {
	dir    string
	logger log.Logger
	now    func() time.Time

	mu    sync.Mutex
	file  *os.File
	audit *logrus.Logger
}

// SessionFileName returns the audit file name for a session started at t.
func SessionFileName(t time.Time) string {
	return fmt.Sprintf("%s-%03d_%s.log", t.Format("15-04-05"), t.Nanosecond()/int(time.Millisecond), t.Format("02-01-2006"))
}

func (f *fileLogger) NewSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.closeSession(); err != nil {
		f.logger.Warningf("Could not close previous audit session: %s", err)
	}

	err := os.MkdirAll(f.dir, 0o755)
	if err != nil {
		return fmt.Errorf("could not create audit directory: %w", err)
	}

	path := filepath.Join(f.dir, SessionFileName(f.now()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("could not create audit file: %w", err)
	}

	audit := logrus.New()
	audit.SetOutput(file)
	audit.SetLevel(logrus.InfoLevel)
	audit.SetFormatter(lineFormatter{now: f.now})

	f.file = file
	f.audit = audit
	f.logger.Debugf("Audit session started on %s", path)

	return nil
}

func (f *fileLogger) PollingStarted() { f.write(sourceEngine, "Polling started") }

func (f *fileLogger) PollingShutdown() { f.write(sourceEngine, "Polling shutdown") }

func (f *fileLogger) ExecuteTask(id, taskType string) {
	f.write(sourcePoller, fmt.Sprintf("Execute task %s Type %s", id, taskType))
}

func (f *fileLogger) UnhandledType(id, taskType string) {
	f.write(sourcePoller, fmt.Sprintf("Unhandled type %s in task %s", taskType, id))
}

func (f *fileLogger) MarkTask(id string, status model.TaskStatus) {
	f.write(sourceEngine, fmt.Sprintf("Task %s marked as %s", id, strings.ToUpper(string(status))))
}

func (f *fileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSession()
}

func (f *fileLogger) write(source, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.audit == nil {
		f.logger.Debugf("Audit line without session dropped: %s", msg)
		return
	}
	f.audit.WithField(sourceKey, source).Info(msg)
}

func (f *fileLogger) closeSession() error {
	if f.file == nil {
		return nil
	}

	err := f.file.Close()
	f.file = nil
	f.audit = nil
	if err != nil {
		return fmt.Errorf("could not close audit file: %w", err)
	}

	return nil
}

// lineFormatter renders `[HH:MM:SS:mmm] (source) message` lines.
type lineFormatter struct {
	now func() time.Time
}

func (l lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	t := l.now()
	source, ok := e.Data[sourceKey].(string)
	if !ok {
		source = sourceEngine
	}

	line := fmt.Sprintf("[%s:%03d] (%s) %s\n", t.Format("15:04:05"), t.Nanosecond()/int(time.Millisecond), source, e.Message)
	return []byte(line), nil
}
