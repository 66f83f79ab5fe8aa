package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore gives every configured level below error its own sampler.
// Errors and unconfigured levels pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	for name, ls := range cfg.Levels {
		lvl, err := zapcore.ParseLevel(name)
		if err != nil || lvl >= zapcore.ErrorLevel {
			continue
		}
		sampled[lvl] = true
		only := &levelFilterCore{Core: core, min: lvl, max: lvl, bounded: true}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick.Duration(), ls.Initial, ls.Thereafter))
	}
	cores = append(cores, &levelFilterCore{Core: core, min: zapcore.DebugLevel, skip: sampled})
	return zapcore.NewTee(cores...)
}

// levelFilterCore passes entries whose level is in [min, max] (max only when
// bounded) and not in skip.
type levelFilterCore struct {
	zapcore.Core
	min, max zapcore.Level
	bounded  bool
	skip     map[zapcore.Level]bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if lvl < c.min || (c.bounded && lvl > c.max) || c.skip[lvl] {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.Core = c.Core.With(fields)
	return &clone
}
