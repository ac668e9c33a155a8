package transport

import (
	"fmt"
	"strings"

	"oebrowse/errors"
)

// genericType 异常文本无法解析时使用的类型标签
const genericType = "error"

// Exception 服务端抛出的异常对象
type Exception struct {
	Module string
	Name   string
	Args   []any
}

// Class 返回异常的完整类名
func (e *Exception) Class() string {
	if e.Module == "" {
		return e.Name
	}
	return e.Module + "." + e.Name
}

// Text 按服务端 unicode(exception) 的规则渲染异常文本
func (e *Exception) Text() string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		if s, ok := e.Args[0].(string); ok {
			return s
		}
		return pyRepr(e.Args[0])
	default:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = pyRepr(a)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

// RemoteError 服务端返回的结构化异常
type RemoteError struct {
	// Type 取自异常文本首行 " -- " 之前的部分，例如 "warning"、"AccessError"
	Type string
	// Traceback 服务端堆栈，非 ASCII 字符已转为 XML 字符引用
	Traceback string
	// Exception 原始异常对象，状态位为 1 但载荷不是异常对象时为 nil
	Exception *Exception
}

// NewRemoteError 从响应载荷构造 RemoteError
func NewRemoteError(value any, trace string) *RemoteError {
	re := &RemoteError{
		Type:      genericType,
		Traceback: asciiTraceback(trace),
	}

	var text string
	switch v := value.(type) {
	case *Exception:
		re.Exception = v
		text = v.Text()
	case string:
		re.Exception = &Exception{Name: "Exception", Args: []any{v}}
		text = v
	}
	if text != "" {
		firstLine, _, _ := strings.Cut(text, "\n")
		tag, _, _ := strings.Cut(firstLine, " -- ")
		re.Type = tag
	}
	return re
}

// Error 类型标签为通用标签时展示堆栈，否则展示异常文本
func (e *RemoteError) Error() string {
	if e.Type == genericType || e.Exception == nil {
		return e.Traceback
	}
	return e.Exception.Text()
}

// AsAppError 包装为 REMOTE_ERROR 应用错误，保留 RemoteError 以便 errors.As
func (e *RemoteError) AsAppError(method string) errors.IError {
	return errors.WrapError(e, errors.ErrCodeRemote, "远程调用失败: "+method).
		WithDetails(map[string]any{"type": e.Type, "method": method})
}

func asciiTraceback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "&#%d;", r)
	}
	return b.String()
}

func pyRepr(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(val) + "'"
	default:
		return fmt.Sprint(val)
	}
}
