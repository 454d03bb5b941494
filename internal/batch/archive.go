package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Archive は行ごとのPDFと連結PDFを1つのZIPにまとめます。
// エントリーは行の順に並び、最後に bundled.pdf が入ります。
func Archive(artifacts []Artifact, bundle []byte, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	add := func(name string, data []byte) error {
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		}
		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zipヘッダーの書き込みに失敗しました: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("zipへの書き込みに失敗しました: %w", err)
		}
		return nil
	}

	for _, a := range artifacts {
		if err := add(a.Filename, a.Document.Data); err != nil {
			return nil, err
		}
	}
	if err := add(BundleFilename, bundle); err != nil {
		return nil, err
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("zipの生成に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}
