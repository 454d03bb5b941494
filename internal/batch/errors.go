package batch

import (
	"errors"
	"fmt"

	"github.com/yourusername/taakinstructies/internal/pdf"
)

// エラーコード
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidCSV        = "INVALID_CSV"
	CodePageOutOfRange    = "PAGE_OUT_OF_RANGE"
	CodeLimitExceeded     = "LIMIT_EXCEEDED"
	CodeUnsupportedPDF    = "UNSUPPORTED_PDF"
	CodeRequestCanceled   = "REQUEST_CANCELED"
	CodeProcessingTimeout = "PROCESSING_TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error は利用者に返すエラーコードとメッセージを保持します。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// RowError はどの行の処理でバッチが中断したかを表します。
type RowError struct {
	Row  int    // 1-based の行番号（ヘッダーを除く）
	Name string // 行の name 列
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%q): %v", e.Row, e.Name, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// OutOfRange は err がページ範囲外エラーであれば行情報と共に返します。
func OutOfRange(err error) (*RowError, *pdf.OutOfRangeError, bool) {
	var oor *pdf.OutOfRangeError
	if !errors.As(err, &oor) {
		return nil, nil, false
	}
	var rowErr *RowError
	errors.As(err, &rowErr)
	return rowErr, oor, true
}
