package apperr

import (
	"errors"
	"fmt"
)

// Code 标识面向用户的错误类别。
type Code string

const (
	CodeMissingCredential Code = "MISSING_CREDENTIAL"
	CodeParse             Code = "PARSE_ERROR"
	CodeAPI               Code = "API_ERROR"
)

// Error 是会话边界上可展示的失败。Reason 原样保留上游给出的错误文本。
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New 构造一个带分类的错误。
func New(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// MissingCredential 表示未提供 API Key，调用方不得发起网络请求。
func MissingCredential() *Error {
	return New(CodeMissingCredential, "API key is required", nil)
}

// Parse 表示文档解析失败。
func Parse(reason string, err error) *Error {
	return New(CodeParse, reason, err)
}

// API 表示远端补全服务失败，reason 为服务端原始错误文本。
func API(reason string, err error) *Error {
	return New(CodeAPI, reason, err)
}

// CodeOf 返回错误链上第一个 *Error 的分类，不存在时返回空串。
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is 判断错误链中是否包含指定分类。
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Display 渲染展示给用户的错误文本。
func Display(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Reason != "" {
		return "发生错误: " + appErr.Reason
	}
	return "发生错误: " + err.Error()
}
