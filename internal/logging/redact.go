package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/domainscope/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, s config.Secret) zap.Field {
	if !s.IsSet() {
		return zap.String(key, "")
	}
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(s.Value())))
}

// redactingEncoder masks values of sensitive keys and string values matching
// a sensitive pattern.
type redactingEncoder struct {
	zapcore.Encoder
	fields   map[string]bool
	patterns []*regexp.Regexp
}

func newRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (zapcore.Encoder, error) {
	if !cfg.Enabled {
		return base, nil
	}
	e := &redactingEncoder{Encoder: base, fields: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		e.fields[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

func (e *redactingEncoder) sensitive(key string) bool {
	key = strings.ToLower(key)
	if e.fields[key] {
		return true
	}
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return e.fields[key[i+1:]]
	}
	return false
}

func (e *redactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			val = re.ReplaceAllString(val, redacted)
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.AddString(key, string(val))
}

func (e *redactingEncoder) AddReflected(key string, val any) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *redactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *redactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{Encoder: e.Encoder.Clone(), fields: e.fields, patterns: e.patterns}
}
