package log

import (
	"fmt"

	"gopkg.in/Sirupsen/logrus.v0"
)

// FieldType discriminates the populated member of ZField, letting EntryZ
// carry typed fields without an allocation per field.
type FieldType int

const (
	fieldString FieldType = iota
	fieldHex8
	fieldHex16
	fieldHex32
	fieldInt
	fieldUint
	fieldBool
	fieldError
)

type ZField struct {
	Type    FieldType
	Key     string
	str     string
	integer uint64
	err     error
	boolean bool
}

func (f ZField) value() any {
	switch f.Type {
	case fieldString:
		return f.str
	case fieldHex8:
		return fmt.Sprintf("%02x", uint8(f.integer))
	case fieldHex16:
		return fmt.Sprintf("%04x", uint16(f.integer))
	case fieldHex32:
		return fmt.Sprintf("%08x", uint32(f.integer))
	case fieldInt:
		return int64(f.integer)
	case fieldUint:
		return f.integer
	case fieldBool:
		return f.boolean
	case fieldError:
		if f.err == nil {
			return "<nil>"
		}
		return f.err.Error()
	}
	return nil
}

// EntryZ is a nullable, fluent, allocate-on-demand log record. logz returns
// nil when the module/level is disabled, and every builder method is a
// nil-receiver no-op, so a disabled call site costs one branch and nothing
// else.
type EntryZ struct {
	lvl    Level
	mod    Module
	msg    string
	fields [8]ZField
	nf     int
}

func newEntryZ() *EntryZ {
	return &EntryZ{}
}

func (e *EntryZ) push(f ZField) *EntryZ {
	if e == nil {
		return nil
	}
	if e.nf < len(e.fields) {
		e.fields[e.nf] = f
		e.nf++
	}
	return e
}

func (e *EntryZ) String(key, val string) *EntryZ {
	return e.push(ZField{Type: fieldString, Key: key, str: val})
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.push(ZField{Type: fieldHex8, Key: key, integer: uint64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.push(ZField{Type: fieldHex16, Key: key, integer: uint64(val)})
}

func (e *EntryZ) Hex32(key string, val uint32) *EntryZ {
	return e.push(ZField{Type: fieldHex32, Key: key, integer: uint64(val)})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.push(ZField{Type: fieldInt, Key: key, integer: uint64(val)})
}

func (e *EntryZ) Uint(key string, val uint) *EntryZ {
	return e.push(ZField{Type: fieldUint, Key: key, integer: uint64(val)})
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	return e.push(ZField{Type: fieldBool, Key: key, boolean: val})
}

func (e *EntryZ) Err(err error) *EntryZ {
	return e.push(ZField{Type: fieldError, Key: "error", err: err})
}

// End emits the record. Safe to call on a nil *EntryZ (disabled log line).
func (e *EntryZ) End() {
	if e == nil {
		return
	}
	fields := make(logrus.Fields, e.nf+1)
	fields["_mod"] = e.mod.name()
	for _, f := range e.fields[:e.nf] {
		fields[f.Key] = f.value()
	}
	entry := logrus.StandardLogger().WithFields(fields)
	switch e.lvl {
	case PanicLevel:
		entry.Panic(e.msg)
	case FatalLevel:
		entry.Fatal(e.msg)
	case ErrorLevel:
		entry.Error(e.msg)
	case WarnLevel:
		entry.Warn(e.msg)
	case InfoLevel:
		entry.Info(e.msg)
	default:
		entry.Debug(e.msg)
	}
}

func (mod Module) logf(lvl Level, format string, args ...any) {
	if !mod.Enabled(lvl) {
		return
	}
	entry := logrus.StandardLogger().WithField("_mod", mod.name())
	msg := fmt.Sprintf(format, args...)
	switch lvl {
	case FatalLevel:
		entry.Fatal(msg)
	case ErrorLevel:
		entry.Error(msg)
	case WarnLevel:
		entry.Warn(msg)
	case InfoLevel:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}
