package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 预定义错误代码
const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"

	// 调用方在本地违反前置条件（缺少凭据、构造参数不合法、禁止的集合操作、未知字段）
	ErrCodePrecondition ErrorCode = "PRECONDITION_FAILED"
	// 字段值无法转换为类型化的值
	ErrCodeMaterialize ErrorCode = "MATERIALIZE_ERROR"
	// 服务端返回了异常载荷
	ErrCodeRemote ErrorCode = "REMOTE_ERROR"
	// 帧或载荷格式不符合协议
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"
	// 连接失败、读取中断等传输层致命错误
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
)

// IError 带错误码与详情的错误
type IError interface {
	error

	Code() ErrorCode
	Message() string
	Is(target error) bool
	Wrap(msg string) IError
	WithDetails(details map[string]any) IError
	WithContext(key string, value any) IError
}

// AppError 应用错误实现，派生操作总是返回新值
type AppError struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
}

// NewError 创建新错误
func NewError(code ErrorCode, message string) IError {
	return &AppError{code: code, message: message}
}

// Errorf 按格式创建新错误
func Errorf(code ErrorCode, format string, args ...any) IError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError 以错误码包装底层错误，err 为 nil 时返回 nil
func WrapError(err error, code ErrorCode, message string) IError {
	if err == nil {
		return nil
	}
	return &AppError{code: code, message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
}

// Code 错误码
func (e *AppError) Code() ErrorCode { return e.code }

// Message 不含错误码与原因的消息
func (e *AppError) Message() string { return e.message }

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error { return e.cause }

// Is 同码即视为同一类错误，否则继续比较 cause
func (e *AppError) Is(target error) bool {
	if other, ok := target.(*AppError); ok {
		return other != nil && e.code == other.code
	}
	return e.cause != nil && target != nil && stdErrors.Is(e.cause, target)
}

// Wrap 在消息前加上说明，保留错误码与详情
func (e *AppError) Wrap(msg string) IError {
	return &AppError{
		code:    e.code,
		message: msg + ": " + e.message,
		cause:   e,
		details: e.derive(nil),
	}
}

// WithDetails 合并详情
func (e *AppError) WithDetails(details map[string]any) IError {
	return &AppError{code: e.code, message: e.message, cause: e.cause, details: e.derive(details)}
}

// WithContext 添加单个详情
func (e *AppError) WithContext(key string, value any) IError {
	return e.WithDetails(map[string]any{key: value})
}

// derive 复制详情并合并 extra
func (e *AppError) derive(extra map[string]any) map[string]any {
	out := make(map[string]any, len(e.details)+len(extra))
	for k, v := range e.details {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// 预定义错误，仅用于 errors.Is 比较错误码
var (
	ErrNotFound     = NewError(ErrCodeNotFound, "记录未找到")
	ErrPrecondition = NewError(ErrCodePrecondition, "前置条件不满足")
	ErrMaterialize  = NewError(ErrCodeMaterialize, "字段值转换失败")
	ErrRemote       = NewError(ErrCodeRemote, "远程调用异常")
	ErrProtocol     = NewError(ErrCodeProtocol, "协议错误")
	ErrNetwork      = NewError(ErrCodeNetwork, "网络错误")
	ErrTimeout      = NewError(ErrCodeTimeout, "操作超时")
)

// IsNotFound 是否为未找到
func IsNotFound(err error) bool { return IsErrorCode(err, ErrCodeNotFound) }

// IsPrecondition 是否为本地前置条件失败
func IsPrecondition(err error) bool { return IsErrorCode(err, ErrCodePrecondition) }

// IsRemote 是否为远程异常
func IsRemote(err error) bool { return IsErrorCode(err, ErrCodeRemote) }

// IsErrorCode 错误链上最外层的 AppError 是否带有 code
func IsErrorCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// GetErrorCode 错误链上最外层 AppError 的错误码，非应用错误视为内部错误
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code
	}
	return ErrCodeInternal
}

// DetailOf 沿错误链查找第一个携带 key 的详情
func DetailOf(err error, key string) (any, bool) {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if v, found := appErr.details[key]; found {
				return v, true
			}
		}
		err = stdErrors.Unwrap(err)
	}
	return nil, false
}
