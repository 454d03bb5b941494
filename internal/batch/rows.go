package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	columnName  = "name"
	columnPages = "pages"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeRows はヘッダー付きCSVを Row の配列に変換します。
// name と pages の列は必須で、列名は大文字小文字と前後の空白を無視して照合します。
func DecodeRows(data []byte, delimiter rune, maxRows int) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.Comma = delimiter
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(CodeInvalidCSV, "CSVにヘッダー行がありません。", nil)
		}
		return nil, newError(CodeInvalidCSV, "CSVの読み込みに失敗しました。", err)
	}

	columns := make([]string, len(header))
	nameIdx, pagesIdx := -1, -1
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := seen[key]; dup && key != "" {
			return nil, newError(CodeInvalidCSV, fmt.Sprintf("CSVの列名 %q が重複しています。", key), nil)
		}
		seen[key] = struct{}{}
		columns[i] = key
		switch key {
		case columnName:
			nameIdx = i
		case columnPages:
			pagesIdx = i
		}
	}
	if nameIdx < 0 || pagesIdx < 0 {
		return nil, newError(CodeInvalidCSV, "CSVには name 列と pages 列が必要です。", nil)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(CodeInvalidCSV, "CSVの形式が正しくありません。", err)
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, newError(CodeLimitExceeded, fmt.Sprintf("CSVの行数が上限（%d行）を超えています。", maxRows), nil)
		}

		row := Row{
			Name:     record[nameIdx],
			PageSpec: record[pagesIdx],
		}
		for i, value := range record {
			if i == nameIdx || i == pagesIdx || columns[i] == "" {
				continue
			}
			if row.Fields == nil {
				row.Fields = make(map[string]string, len(record)-2)
			}
			row.Fields[columns[i]] = value
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, newError(CodeInvalidCSV, "CSVにデータ行がありません。", nil)
	}
	return rows, nil
}
