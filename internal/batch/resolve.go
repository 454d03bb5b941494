package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	leadingInteger  = regexp.MustCompile(`^[+-]?[0-9]+`)
)

// Resolve は行の pages 列をページ番号の並びに変換します。
// 各トークンは先頭の整数部分だけを使います（"2a" は 2、"1-3" は 1）。
// 切り捨てた残りと、整数で始まらないトークンは診断情報として返します。
// 元PDFのページ数との照合はここでは行いません。
func Resolve(index int, row Row) (Selection, []Diagnostic) {
	var (
		pages []int
		diags []Diagnostic
	)

	for _, token := range strings.Split(row.PageSpec, ",") {
		token = strings.TrimSpace(token)
		n, rest, ok := parseLeadingInt(token)
		if !ok {
			if token != "" {
				diags = append(diags, Diagnostic{
					Row:     index,
					Name:    row.Name,
					Kind:    DiagnosticDroppedToken,
					Message: fmt.Sprintf("ページ指定 %q は整数ではないため無視しました。", token),
				})
			}
			continue
		}
		if rest != "" {
			diags = append(diags, Diagnostic{
				Row:     index,
				Name:    row.Name,
				Kind:    DiagnosticTruncatedToken,
				Message: fmt.Sprintf("ページ指定 %q の %q を無視し、%d として扱いました。", token, rest, n),
			})
		}
		pages = append(pages, n)
	}

	if len(pages) == 0 {
		diags = append(diags, Diagnostic{
			Row:     index,
			Name:    row.Name,
			Kind:    DiagnosticEmptySelection,
			Message: "有効なページ番号がないため空のPDFを生成します。",
		})
	}

	if _, fallback := SanitizeName(row.Name); fallback {
		diags = append(diags, Diagnostic{
			Row:     index,
			Name:    row.Name,
			Kind:    DiagnosticNameFallback,
			Message: fmt.Sprintf("名前に使える文字がないため %q を使用します。", FallbackName),
		})
	}

	return Selection{Pages: pages}, diags
}

// parseLeadingInt は token 先頭の10進整数と、その後ろの残りを返します。
func parseLeadingInt(token string) (int, string, bool) {
	digits := leadingInteger.FindString(token)
	if digits == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", false
	}
	return n, token[len(digits):], true
}

// SanitizeName は [A-Za-z0-9_-] 以外の文字を空白に置き換えます。
// 結果が空白だけになった場合は FallbackName を返し、fallback を true にします。
func SanitizeName(name string) (string, bool) {
	safe := unsafeNameChars.ReplaceAllString(name, " ")
	if strings.TrimSpace(safe) == "" {
		return FallbackName, true
	}
	return safe, false
}

// EntryName は ZIP 内の行ごとのエントリー名 "<行番号> <名前>.pdf" を返します。
func EntryName(index int, name string) string {
	safe, _ := SanitizeName(name)
	return fmt.Sprintf("%d %s.pdf", index, safe)
}
