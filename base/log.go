package base

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

const (
	TimestampFormat = "2006-01-02T15:04:05.000000Z08:00"
	LogDir          = "./log"
)

// InitLog applies the LOG section to Logger. When LogToFile is set the
// returned closer owns the opened log file, otherwise it is nil.
func InitLog(cfg LOG, program string) (io.Closer, error) {
	Logger.SetReportCaller(true)

	switch cfg.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: TimestampFormat,
		})
	case "text":
		fallthrough
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: TimestampFormat,
		})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", cfg.LogLevel)
	}
	Logger.SetLevel(level)

	if !cfg.LogToFile {
		return nil, nil
	}

	dir := cfg.Dir
	if dir == "" {
		dir = LogDir
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}

	strTime := time.Now().Format(TimestampFormat)
	strTime = strings.ReplaceAll(strTime, ":", "_")
	logName := filepath.Join(dir, filepath.Base(program)+"."+strTime+".log")

	logFile, err := os.OpenFile(logName, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", logName)
	}

	Logger.SetOutput(logFile)
	Logger.Debugf("Open %s success !", logName)
	return logFile, nil
}
