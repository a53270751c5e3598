package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error. Error and above always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	high := &levelRangeCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	below := &levelRangeCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	sampled := zapcore.NewSamplerWithOptions(below, cfg.Tick, cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(high, sampled)
}

// levelRangeCore passes only entries with min <= level <= max.
type levelRangeCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelRangeCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
