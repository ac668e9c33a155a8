package transport

import (
	"github.com/ugorji/go/codec"

	"oebrowse/errors"
)

// 异常对象在 msgpack 中以带标记键的映射表示
const (
	exceptionKey     = "__exception__"
	exceptionArgsKey = "args"
)

// Msgpack 备用编解码器，供不使用 pickle 的网关与测试桩使用
var Msgpack Codec = newMsgpackCodec()

type msgpackCodec struct {
	handle *codec.MsgpackHandle
}

func newMsgpackCodec() *msgpackCodec {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	h.SignedInteger = true
	return &msgpackCodec{handle: h}
}

func (c *msgpackCodec) Name() string { return "msgpack" }

func (c *msgpackCodec) Encode(v any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, c.handle)
	if err := enc.Encode(toMsgpack(v)); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeProtocol, "msgpack 编码失败")
	}
	return out, nil
}

func (c *msgpackCodec) Decode(data []byte) (any, error) {
	var v any
	dec := codec.NewDecoderBytes(data, c.handle)
	if err := dec.Decode(&v); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeProtocol, "msgpack 解码失败")
	}
	return fromMsgpack(normalize(v)), nil
}

func toMsgpack(v any) any {
	switch val := v.(type) {
	case Tuple:
		return toMsgpack([]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toMsgpack(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toMsgpack(item)
		}
		return out
	case *Exception:
		return map[string]any{
			exceptionKey:     val.Class(),
			exceptionArgsKey: toMsgpack(val.Args),
		}
	default:
		return val
	}
}

func fromMsgpack(v any) any {
	switch val := v.(type) {
	case []any:
		for i, item := range val {
			val[i] = fromMsgpack(item)
		}
		return val
	case map[string]any:
		if class, ok := val[exceptionKey].(string); ok {
			args, _ := AsList(val[exceptionArgsKey])
			exc := &Exception{Name: class, Args: args}
			if i := lastDot(class); i >= 0 {
				exc.Module, exc.Name = class[:i], class[i+1:]
			}
			return exc
		}
		for k, item := range val {
			val[k] = fromMsgpack(item)
		}
		return val
	default:
		return val
	}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
