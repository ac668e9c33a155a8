package transport

import (
	"fmt"
	"math"
	"math/big"
)

// normalize 把解码器产生的通用 Go 类型折叠为规范形状
func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int64, float64, *Exception:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case uint:
		return int64(val)
	case float32:
		return float64(val)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	case []byte:
		return string(val)
	case Tuple:
		return normalizeSlice(val)
	case []any:
		return normalizeSlice(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[keyString(k)] = normalize(item)
		}
		return out
	default:
		return val
	}
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, item := range in {
		out[i] = normalize(item)
	}
	return out
}

func keyString(k any) string {
	switch kv := k.(type) {
	case string:
		return kv
	case []byte:
		return string(kv)
	default:
		return fmt.Sprint(normalize(kv))
	}
}

// AsInt64 读取整数值（浮点数仅在为整数时接受）
func AsInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case float64:
		if val == math.Trunc(val) {
			return int64(val), true
		}
	}
	return 0, false
}

// AsFloat64 读取数值
func AsFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	}
	return 0, false
}

// AsString 读取字符串
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsList 读取序列
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case Tuple:
		return val, true
	}
	return nil, false
}

// AsMap 读取映射
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// AsInt64List 读取整数序列，例如 search 返回的标识列表
func AsInt64List(v any) ([]int64, bool) {
	list, ok := AsList(v)
	if !ok {
		return nil, false
	}
	out := make([]int64, 0, len(list))
	for _, item := range list {
		id, ok := AsInt64(item)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// IsFalsy 按服务端的真值规则判断空值：None、False、0、空串、空序列
func IsFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case int64:
		return val == 0
	case int:
		return val == 0
	case float64:
		return val == 0
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case Tuple:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
