package utils

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrInvalidPhoneNumberFormat = errors.New("无效的号码格式，必须是11位数字")
	ErrInvalidPhoneNumberPrefix = errors.New("无效的号码前缀，必须以1开头")
)

// IsNumeric 检查字符串是否只包含数字
func IsNumeric(s string) bool {
	if s == "" {
		return false // 空字符串不视为数字
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ValidatePhoneNumber 校验号码格式。
// 如果有效，返回 nil；否则返回具体的错误。
func ValidatePhoneNumber(phone string) error {
	trimmedPhone := strings.TrimSpace(phone)
	if len(trimmedPhone) != 11 {
		return ErrInvalidPhoneNumberFormat
	}
	if !IsNumeric(trimmedPhone) {
		return ErrInvalidPhoneNumberFormat
	}
	if !strings.HasPrefix(trimmedPhone, "1") {
		return ErrInvalidPhoneNumberPrefix
	}
	return nil
}
