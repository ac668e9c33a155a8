package errors

import (
	"context"
	"fmt"
	"runtime"

	"oebrowse/logging"
)

// Wrap 包装错误，添加错误码和上下文信息
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	logging.GetLogger().Debug(ctx, fmt.Sprintf("错误包装: %s (位置: %s:%d)", msg, file, line))

	return wrapped
}

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)

	logging.GetLogger().Warn(ctx, msg, allFields...)

	return wrapped
}

// Precondition 创建前置条件错误，调用方在本地即失败，不会触达网络
func Precondition(format string, args ...any) IError {
	return Errorf(ErrCodePrecondition, format, args...)
}

// NotFound 创建携带标识的未找到错误
func NotFound(model string, id int64) IError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s 记录 %d 不存在", model, id)).
		WithDetails(map[string]any{"model": model, "id": id})
}
