package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Iface 自定义logger接口，log及zap等均已实现此接口
type Iface interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// FIface 适用于 fmt.Errorf 风格的日志接口
type FIface interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// Level 日志级别
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	discardLevel
)

const end = "\u001B[0m\t"

// 各级别带颜色的前缀
var levelPrefix = [...]string{
	DebugLevel: "\u001B[35mDEBUG" + end, // 紫红色
	InfoLevel:  "\u001B[34mINFO" + end,
	WarnLevel:  "\u001B[33mWARN" + end,
	ErrorLevel: "\u001B[31mERROR" + end,
}

// DefaultLogger 带颜色前缀的标准库logger
type DefaultLogger struct {
	loggers [discardLevel]*log.Logger
	out     io.Writer
	prefix  string
	flag    int
	level   atomic.Int32 // 低于此级别的日志被丢弃
}

func (l *DefaultLogger) output(level Level, msg string) {
	if Level(l.level.Load()) > level {
		return
	}
	// 跳过 output 和调用它的日志方法, 获取调用者路径
	_ = l.loggers[level].Output(3, msg)
}

func (l *DefaultLogger) Debug(args ...any) { l.output(DebugLevel, fmt.Sprintln(args...)) }

func (l *DefaultLogger) Info(args ...any) { l.output(InfoLevel, fmt.Sprintln(args...)) }

func (l *DefaultLogger) Warn(args ...any) { l.output(WarnLevel, fmt.Sprintln(args...)) }

func (l *DefaultLogger) Error(args ...any) { l.output(ErrorLevel, fmt.Sprintln(args...)) }

func (l *DefaultLogger) Debugf(format string, v ...any) {
	l.output(DebugLevel, fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Infof(format string, v ...any) {
	l.output(InfoLevel, fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Warnf(format string, v ...any) {
	l.output(WarnLevel, fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Errorf(format string, v ...any) {
	l.output(ErrorLevel, fmt.Sprintf(format, v...))
}

// SetLevel 修改最低输出级别, 丢弃输出的logger不受影响
func (l *DefaultLogger) SetLevel(level Level) {
	if l.out == io.Discard {
		return
	}
	l.level.Store(int32(level))
}

// Level 当前最低输出级别
func (l *DefaultLogger) Level() Level { return Level(l.level.Load()) }

// Named 返回一个附加了名称前缀的新logger, 输出位置和级别不变
//
//	log.Named("fastapi").Info("bind route") => INFO	[fastapi] bind route
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	n := NewLogger(l.out, l.prefix+"["+name+"] ", l.flag)
	n.SetLevel(l.Level())
	return n
}

// Writer 日志输出位置
func (l *DefaultLogger) Writer() io.Writer { return l.out }

// NewLogger 创建logger, 默认级别为 DebugLevel
//
//	@param	out		io.Writer	输出位置, io.Discard 时丢弃全部日志
//	@param	prefix	string		消息前缀
//	@param	flag	int			标准库 log 的 flag
func NewLogger(out io.Writer, prefix string, flag int) *DefaultLogger {
	d := &DefaultLogger{out: out, prefix: prefix, flag: flag}
	for level := range d.loggers {
		d.loggers[level] = log.New(out, levelPrefix[level]+prefix, flag|log.Lmsgprefix)
	}
	if out == io.Discard {
		d.level.Store(int32(discardLevel))
	}
	return d
}

func NewDefaultLogger() *DefaultLogger {
	return NewLogger(os.Stdout, "", log.LstdFlags|log.Lshortfile)
}

// NewDiscardLogger 丢弃全部输出, 用于测试
func NewDiscardLogger() *DefaultLogger {
	return NewLogger(io.Discard, "", 0)
}

var (
	dLog   Iface = NewDefaultLogger()
	dLogMu sync.RWMutex
)

// Default 获取包级默认logger
func Default() Iface {
	dLogMu.RLock()
	defer dLogMu.RUnlock()
	return dLog
}

// SetDefault 替换包级默认logger, nil 被忽略
func SetDefault(l Iface) {
	if l == nil {
		return
	}
	dLogMu.Lock()
	dLog = l
	dLogMu.Unlock()
}
