package transport

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"oebrowse/errors"
)

const (
	// 长度字段宽度，十进制左侧空格填充
	lengthWidth = 8
	// MaxPayload 8 位十进制可表达的最大载荷字节数
	MaxPayload = 99999999

	statusNormal    = '0'
	statusException = '1'
)

// WriteFrame 写出一个帧：8 位长度 + 1 位状态 + 载荷
func WriteFrame(w io.Writer, payload []byte, exception bool) error {
	if len(payload) > MaxPayload {
		return errors.Errorf(errors.ErrCodeProtocol, "载荷过大: %d 字节", len(payload))
	}
	status := byte(statusNormal)
	if exception {
		status = statusException
	}

	buf := make([]byte, 0, lengthWidth+1+len(payload))
	buf = fmt.Appendf(buf, "%8d", len(payload))
	buf = append(buf, status)
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return errors.Normalize(err)
	}
	return nil
}

// ReadFrame 读取一个完整帧。
//
// 读取按字节数循环直到满足长度，连接在帧中途关闭视为致命错误，
// 绝不返回不完整的载荷。
func ReadFrame(r io.Reader) (payload []byte, exception bool, err error) {
	header := make([]byte, lengthWidth+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, false, errors.Normalize(err)
	}

	size, err := strconv.Atoi(strings.TrimSpace(string(header[:lengthWidth])))
	if err != nil || size < 0 {
		return nil, false, errors.Errorf(errors.ErrCodeProtocol, "无效的帧长度 %q", header[:lengthWidth])
	}

	switch header[lengthWidth] {
	case statusNormal:
	case statusException:
		exception = true
	default:
		return nil, false, errors.Errorf(errors.ErrCodeProtocol, "无效的帧状态位 %q", header[lengthWidth])
	}

	payload = make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, false, errors.Normalize(err).(errors.IError).
			WithContext("expected", size)
	}
	return payload, exception, nil
}
