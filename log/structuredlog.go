package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// StructuredLog is the JSON form of a recorded log line.
type StructuredLog struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Module  string         `json:"module,omitempty"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

var fieldOrder = []string{"time", "level", "module", "msg", "attrs"}

// Custom JSON marshaling to preserve field order and omit zero/empty values.
func (l StructuredLog) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeField := func(key string, val any) error {
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, `"%s":`, key)
		buf.Write(b)
		return nil
	}
	for _, f := range fieldOrder {
		var err error
		switch f {
		case "time":
			err = writeField(f, l.Time)
		case "level":
			err = writeField(f, l.Level)
		case "module":
			if l.Module != "" {
				err = writeField(f, l.Module)
			}
		case "msg":
			err = writeField(f, l.Message)
		case "attrs":
			if len(l.Attrs) > 0 {
				err = writeField(f, l.Attrs)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toStructured(module string, r slog.Record) StructuredLog {
	s := StructuredLog{
		Time:    r.Time.UTC(),
		Level:   LevelString(r.Level),
		Module:  module,
		Message: r.Message,
	}
	if r.NumAttrs() > 0 {
		s.Attrs = make(map[string]any, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			s.Attrs[a.Key] = jsonValue(a.Value.Resolve())
			return true
		})
	}
	return s
}

func jsonValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(fmt.Stringer); ok {
			return s.String()
		}
		return v.Any()
	case slog.KindGroup:
		m := make(map[string]any)
		for _, a := range v.Group() {
			m[a.Key] = jsonValue(a.Value.Resolve())
		}
		return m
	default:
		return v.Any()
	}
}

func (l *logger) GetRecordedLogs() ([]byte, error) {
	l.mu.Lock()
	records := append([]recorded(nil), l.records...)
	l.mu.Unlock()

	buf := &bytes.Buffer{}
	for _, rec := range records {
		b, err := json.Marshal(toStructured(rec.module, rec.record))
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
