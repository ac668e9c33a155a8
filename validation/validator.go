// Package validation 提供本地前置条件校验，失败时返回 PRECONDITION_FAILED 错误
package validation

import (
	"fmt"
	"strings"

	"oebrowse/errors"
)

// 调用域，对应服务端的 netsvc 服务名
var serviceDomains = []string{"object", "wizard", "db", "common"}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Precondition("%s不能为空", fieldName)
	}
	return nil
}

// ValidatePort 验证端口范围
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return errors.Precondition("端口必须在1-65535之间（当前%d）", port)
	}
	return nil
}

// ValidateID 验证ID有效性
func ValidateID(id int64, fieldName string) error {
	if id <= 0 {
		return errors.Precondition("%s必须为正整数（当前%d）", fieldName, id)
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return errors.Precondition("%s的值无效，必须是以下之一: %v", fieldName, validValues)
}

// ValidateDomain 验证调用域
func ValidateDomain(domain string) error {
	return ValidateEnum(domain, "调用域", serviceDomains)
}

// ValidateCredentials 验证用户标识与密码均已设置
func ValidateCredentials(uid int64, password string) error {
	if uid <= 0 || password == "" {
		return errors.Precondition("未登录: 需要同时设置用户标识与密码")
	}
	return nil
}

// ValidateAddress 验证主机与端口
func ValidateAddress(host string, port int) error {
	if err := ValidateRequired(host, "主机"); err != nil {
		return err
	}
	if err := ValidatePort(port); err != nil {
		return fmt.Errorf("%s:%d: %w", host, port, err)
	}
	return nil
}
