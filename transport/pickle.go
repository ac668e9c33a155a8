package transport

import (
	"bytes"
	"reflect"

	ogorek "github.com/kisielk/og-rek"

	"oebrowse/errors"
)

// pickleProtocol 与服务端 cPickle 兼容的协议版本
const pickleProtocol = 2

// Pickle 默认编解码器，与服务端 cPickle 互通
var Pickle Codec = pickleCodec{}

type pickleCodec struct{}

func (pickleCodec) Name() string { return "pickle" }

func (pickleCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := ogorek.NewEncoderWithConfig(&buf, &ogorek.EncoderConfig{Protocol: pickleProtocol})
	if err := enc.Encode(toPickle(v)); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeProtocol, "pickle 编码失败")
	}
	return buf.Bytes(), nil
}

func (pickleCodec) Decode(data []byte) (any, error) {
	dec := ogorek.NewDecoder(bytes.NewReader(data))
	v, err := dec.Decode()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeProtocol, "pickle 解码失败")
	}
	return normalize(fromPickle(v)), nil
}

func toPickle(v any) any {
	switch val := v.(type) {
	case nil:
		return ogorek.None{}
	case Tuple:
		out := make(ogorek.Tuple, len(val))
		for i, item := range val {
			out[i] = toPickle(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toPickle(item)
		}
		return out
	case []int64:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case map[string]any:
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[k] = toPickle(item)
		}
		return out
	case *Exception:
		args := make(ogorek.Tuple, len(val.Args))
		for i, a := range val.Args {
			args[i] = toPickle(a)
		}
		return ogorek.Call{
			Callable: ogorek.Class{Module: val.Module, Name: val.Name},
			Args:     args,
		}
	default:
		return val
	}
}

func fromPickle(v any) any {
	switch val := v.(type) {
	case ogorek.None:
		return nil
	case ogorek.Tuple:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromPickle(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromPickle(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[fromPickle(k)] = fromPickle(item)
		}
		return out
	case ogorek.Call:
		return exceptionFromCall(val)
	case ogorek.Class:
		return val.Module + "." + val.Name
	}

	// py2 str / py3 bytes 在 og-rek 中是具名字符串类型
	if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

// exceptionFromCall 还原 REDUCE 出的异常实例，兼容 copy_reg._reconstructor 形式
func exceptionFromCall(call ogorek.Call) *Exception {
	class := call.Callable
	args := []any(call.Args)
	if class.Module == "copy_reg" && class.Name == "_reconstructor" && len(args) > 0 {
		if inner, ok := args[0].(ogorek.Class); ok {
			class = inner
			args = nil
		}
	}
	out := &Exception{Module: class.Module, Name: class.Name, Args: make([]any, len(args))}
	for i, a := range args {
		out.Args[i] = normalize(fromPickle(a))
	}
	return out
}
