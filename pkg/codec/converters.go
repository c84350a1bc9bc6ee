package codec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

// nilOmittingEncoder reports a field empty only when it holds a nil reference,
// so empty but non-nil slices and maps are still written.
type nilOmittingEncoder struct {
	jsoniter.ValEncoder
	typ reflect2.Type
}

func (e *nilOmittingEncoder) IsEmpty(ptr unsafe.Pointer) bool {
	return e.typ.UnsafeIsNil(ptr)
}

type blankStringEncoder struct {
	jsoniter.ValEncoder
}

func (e *blankStringEncoder) IsEmpty(ptr unsafe.Pointer) bool {
	return strings.TrimSpace(*(*string)(ptr)) == ""
}

// keyStringCodec writes integer identifiers as JSON strings and reads either form back.
type keyStringCodec struct {
	kind reflect.Kind
}

func (c keyStringCodec) IsEmpty(unsafe.Pointer) bool {
	return false
}

func (c keyStringCodec) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	stream.WriteString(strconv.FormatInt(readInt(ptr, c.kind), 10))
}

func (c keyStringCodec) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	var raw string
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		writeInt(ptr, c.kind, 0)
		return
	case jsoniter.StringValue:
		raw = iter.ReadString()
	case jsoniter.NumberValue:
		raw = string(iter.ReadNumber())
	default:
		iter.ReportError("decode key", "expected string or number")
		return
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, bitSize(c.kind))
	if err != nil {
		iter.ReportError("decode key", err.Error())
		return
	}
	writeInt(ptr, c.kind, n)
}

func bitSize(kind reflect.Kind) int {
	switch kind {
	case reflect.Int8:
		return 8
	case reflect.Int16:
		return 16
	case reflect.Int32:
		return 32
	case reflect.Int64:
		return 64
	default:
		return strconv.IntSize
	}
}

func readInt(ptr unsafe.Pointer, kind reflect.Kind) int64 {
	switch kind {
	case reflect.Int8:
		return int64(*(*int8)(ptr))
	case reflect.Int16:
		return int64(*(*int16)(ptr))
	case reflect.Int32:
		return int64(*(*int32)(ptr))
	case reflect.Int64:
		return *(*int64)(ptr)
	default:
		return int64(*(*int)(ptr))
	}
}

func writeInt(ptr unsafe.Pointer, kind reflect.Kind, n int64) {
	switch kind {
	case reflect.Int8:
		*(*int8)(ptr) = int8(n)
	case reflect.Int16:
		*(*int16)(ptr) = int16(n)
	case reflect.Int32:
		*(*int32)(ptr) = int32(n)
	case reflect.Int64:
		*(*int64)(ptr) = n
	default:
		*(*int)(ptr) = int(n)
	}
}

// fragmentCodec embeds a string holding JSON text as a JSON value.
type fragmentCodec struct{}

func (fragmentCodec) IsEmpty(unsafe.Pointer) bool {
	return false
}

func (fragmentCodec) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	text := strings.TrimSpace(*(*string)(ptr))
	if text == "" {
		stream.WriteNil()
		return
	}
	// a full decode rejects bytes left after the first value
	var decoded interface{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(text, &decoded); err != nil {
		if stream.Error == nil {
			stream.Error = fmt.Errorf("invalid JSON fragment: %.40q", text)
		}
		return
	}
	stream.WriteRaw(text)
}

func (fragmentCodec) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.ReadNil()
		*(*string)(ptr) = ""
		return
	}
	*(*string)(ptr) = string(iter.SkipAndReturnBytes())
}
