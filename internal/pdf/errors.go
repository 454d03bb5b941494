package pdf

import (
	"errors"
	"fmt"
)

// ErrUnreadable は pdfcpu が入力を PDF として解釈できなかったことを表します。
var ErrUnreadable = errors.New("pdf: document could not be read")

// OutOfRangeError は元PDFに存在しないページ番号が指定されたことを表します。
type OutOfRangeError struct {
	Page      int // 指定されたページ番号（1-based）
	PageCount int // 元PDFのページ数
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("page %d is out of range (document has %d pages)", e.Page, e.PageCount)
}

func unreadable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
}
