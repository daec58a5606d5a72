// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はニュース取得エラーの分類を表す。
type ErrorKind string

const (
	// ErrKindConfig は認証情報の未設定など、設定不備によるエラー。リトライしない。
	ErrKindConfig ErrorKind = "CONFIG_ERROR"
	// ErrKindUpstreamHTTP は上流の非2xx応答またはタイムアウト。
	ErrKindUpstreamHTTP ErrorKind = "UPSTREAM_HTTP_ERROR"
	// ErrKindUpstreamShape は上流ペイロードに期待する構造がない場合のエラー。
	ErrKindUpstreamShape ErrorKind = "UPSTREAM_SHAPE_ERROR"
	// ErrKindUpstreamReported は上流が自身のエンベロープで失敗を通知した場合のエラー。
	ErrKindUpstreamReported ErrorKind = "UPSTREAM_REPORTED_ERROR"
)

// NewsError はニュースプロキシの統一エラー。
// Messageはそのままエラーエンベロープに載るため、秘密情報を含めてはならない。
type NewsError struct {
	Kind           ErrorKind
	Message        string
	UpstreamStatus int  // 上流のHTTPステータス（不明な場合は0）
	Timeout        bool // 上流がタイムアウトした場合true
}

// Error はerrorインターフェースを実装する。
func (e *NewsError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewConfigError は設定不備エラーを生成する。
func NewConfigError(reason string) *NewsError {
	return &NewsError{
		Kind:    ErrKindConfig,
		Message: reason,
	}
}

// NewMissingCredentialError は認証情報未設定エラーを生成する。
// 値ではなく環境変数名のみをメッセージに含める。
func NewMissingCredentialError(envName string) *NewsError {
	return NewConfigError(fmt.Sprintf("API key not configured: %s", envName))
}

// NewUpstreamStatusError は上流が非2xxを返した場合のエラーを生成する。
func NewUpstreamStatusError(upstream string, status int) *NewsError {
	return &NewsError{
		Kind:           ErrKindUpstreamHTTP,
		Message:        fmt.Sprintf("%s request failed: upstream returned HTTP %d", upstream, status),
		UpstreamStatus: status,
	}
}

// NewUpstreamTimeoutError は上流がタイムアウトした場合のエラーを生成する。
func NewUpstreamTimeoutError(upstream string) *NewsError {
	return &NewsError{
		Kind:    ErrKindUpstreamHTTP,
		Message: fmt.Sprintf("%s request failed: timed out", upstream),
		Timeout: true,
	}
}

// NewUpstreamTransportError は接続失敗などの通信エラーを生成する。
func NewUpstreamTransportError(upstream string, cause error) *NewsError {
	return &NewsError{
		Kind:    ErrKindUpstreamHTTP,
		Message: fmt.Sprintf("%s request failed: %v", upstream, cause),
	}
}

// NewUpstreamShapeError は上流ペイロードの構造不正エラーを生成する。
func NewUpstreamShapeError(upstream, reason string) *NewsError {
	return &NewsError{
		Kind:    ErrKindUpstreamShape,
		Message: fmt.Sprintf("%s returned no usable data: %s", upstream, reason),
	}
}

// NewUpstreamReportedError は上流が通知したエラーメッセージをそのまま伝える。
func NewUpstreamReportedError(upstream string, messages ...string) *NewsError {
	msg := strings.TrimSpace(strings.Join(messages, "; "))
	if msg == "" {
		msg = "unknown error"
	}
	return &NewsError{
		Kind:    ErrKindUpstreamReported,
		Message: fmt.Sprintf("%s reported an error: %s", upstream, msg),
	}
}

// AsNewsError はerrからNewsErrorを取り出す。該当しない場合はfalseを返す。
func AsNewsError(err error) (*NewsError, bool) {
	var ne *NewsError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}
