package stub

import (
	"fmt"

	"oebrowse/transport"
)

// 服务端异常类型标签
const (
	TagAccessDenied = "AccessDenied"
	TagMissing      = "MissingError"
	TagValidation   = "ValidationError"
	TagWarning      = "warning"
)

// Fault 以异常帧返回给客户端的业务错误，文本形如 "tag -- message"
type Fault struct {
	Tag     string
	Message string
}

func (f *Fault) Error() string {
	return f.Tag + " -- " + f.Message
}

func faultf(tag, format string, args ...any) *Fault {
	return &Fault{Tag: tag, Message: fmt.Sprintf(format, args...)}
}

// exceptionOf 把处理错误转换为异常对象与堆栈文本
//
// 业务错误带上标签文本；其它错误不带参数，客户端只看到堆栈。
func exceptionOf(method string, err error) (*transport.Exception, string) {
	trace := fmt.Sprintf("Traceback (most recent call last):\n  File \"stub\", in %s\n%s\n", method, err.Error())
	if f, ok := err.(*Fault); ok {
		return &transport.Exception{Module: "exceptions", Name: "Exception", Args: []any{f.Error()}}, trace
	}
	return &transport.Exception{Module: "exceptions", Name: "RuntimeError"}, trace
}
