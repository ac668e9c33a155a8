package transport

import (
	"sort"
	"sync"

	"oebrowse/errors"
)

// Codec 编解码载荷。
//
// Decode 必须把编解码器自身的类型规范化为：nil、bool、int64、float64、string、
// []any、map[string]any，服务端异常对象解码为 *Exception。
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Tuple 以元组形式编码的序列（pickle 中区别于 list）
type Tuple []any

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{}
)

// RegisterCodec 注册编解码器，同名覆盖
func RegisterCodec(c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[c.Name()] = c
}

// LookupCodec 按名称查找编解码器
func LookupCodec(name string) (Codec, error) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[name]
	if !ok {
		return nil, errors.Precondition("未知的编解码器: %s", name)
	}
	return c, nil
}

// AvailableCodecs 返回已注册的编解码器名称
func AvailableCodecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterCodec(Pickle)
	RegisterCodec(Msgpack)
}
