package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一日志接口，键值对成对出现
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

// Options 日志初始化选项
type Options struct {
	Level    string   // debug/info/warn/error
	Writers  []string // console/file
	FilePath string   // file writer 输出路径
}

type zl struct {
	l zerolog.Logger
}

// New 创建 zerolog 日志实例，按配置组合控制台与滚动文件输出
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		case "file":
			path := opts.FilePath
			if path == "" {
				path = "pdfrouter.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    32, // MB
				MaxBackups: 5,
				MaxAge:     14, // 天
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level := zerolog.InfoLevel
	switch strings.ToLower(opts.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	return &zl{l: l}
}

func (z *zl) Debug(msg string, kv ...any) { emit(z.l.Debug(), msg, kv) }
func (z *zl) Info(msg string, kv ...any)  { emit(z.l.Info(), msg, kv) }
func (z *zl) Warn(msg string, kv ...any)  { emit(z.l.Warn(), msg, kv) }

func (z *zl) Err(err error, msg string, kv ...any) {
	emit(z.l.Error().Err(err), msg, kv)
}

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

type nop struct{}

// NewNop 创建空日志实例
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any)      {}
func (nop) Info(string, ...any)       {}
func (nop) Warn(string, ...any)       {}
func (nop) Err(error, string, ...any) {}
