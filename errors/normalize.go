package errors

import (
	"context"
	stdErrors "errors"
	"io"
	"net"
	"syscall"
)

// Normalize 将传输层的底层错误规范化为 AppError。
//
// 注意：
//   - 如果传入的 err 已经是 IError，则原样返回；
//   - 未识别的错误统一归为网络错误，传输层不存在可恢复的失败。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(IError); ok {
		return err
	}

	if stdErrors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrCodeTimeout, "调用超时")
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return WrapError(err, ErrCodeTimeout, "网络超时")
	}

	if stdErrors.Is(err, io.EOF) || stdErrors.Is(err, io.ErrUnexpectedEOF) {
		return WrapError(err, ErrCodeNetwork, "连接在帧读取完成前关闭")
	}

	if stdErrors.Is(err, syscall.ECONNREFUSED) || stdErrors.Is(err, syscall.ECONNRESET) {
		return WrapError(err, ErrCodeNetwork, "连接被拒绝或重置")
	}

	var opErr *net.OpError
	if stdErrors.As(err, &opErr) {
		return WrapError(err, ErrCodeNetwork, "网络操作失败: "+opErr.Op)
	}

	return WrapError(err, ErrCodeNetwork, "传输失败")
}
