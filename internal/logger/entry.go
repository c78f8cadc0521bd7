package logger

import (
	"context"
)

// Entry is a log line carrying queue fields (ids, transitions, durations)
// that log pipelines aggregate on.
//
//	logger.With(logger.Fields{logger.FieldAIRequestID: id}).
//		WithTransition("assigned", "processing").Info(ctx, "Request transitioned")
type Entry struct {
	fields Fields
}

// With starts an Entry with the given fields.
func With(fields Fields) *Entry {
	return (&Entry{}).With(fields)
}

// ForRequest starts an Entry about one AI request.
func ForRequest(id string) *Entry {
	return With(Fields{FieldAIRequestID: id})
}

// With returns a copy of e with fields added.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithDuration sets duration_ms.
func (e *Entry) WithDuration(ms int64) *Entry {
	return e.With(Fields{FieldDurationMs: ms})
}

// WithCount sets count.
func (e *Entry) WithCount(count int) *Entry {
	return e.With(Fields{FieldCount: count})
}

// WithTransition records a status change as from/status.
func (e *Entry) WithTransition(from, to string) *Entry {
	return e.With(Fields{FieldFrom: from, FieldStatus: to})
}

// WithStatus sets status.
func (e *Entry) WithStatus(status string) *Entry {
	return e.With(Fields{FieldStatus: status})
}

// Fields returns a copy of the entry's fields.
func (e *Entry) Fields() Fields {
	out := make(Fields, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Debugf(format, args...)
}

// Info logs through the context logger, or the default logger when ctx carries none.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}

func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Errorf(format, args...)
}
