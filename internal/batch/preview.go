package batch

import "context"

// PreviewRow は1行分の解決結果です。
type PreviewRow struct {
	Row        int    `json:"row"`
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	Pages      []int  `json:"pages"`
	Sheets     int    `json:"sheets"`
	OutOfRange []int  `json:"outOfRange,omitempty"`
}

// Preview は文書を生成せずに、各行がどう解決されるかを返します。
type Preview struct {
	SourcePages int          `json:"sourcePages"`
	Arity       int          `json:"arity"`
	Rows        []PreviewRow `json:"rows"`
	Entries     []string     `json:"entries"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	// Runnable は範囲外のページ指定がなく、生成が成功する見込みであることを表します。
	Runnable bool `json:"runnable"`
}

// Preview はアップロード内容を検証し、生成した場合のZIPの構成を返します。
func (s *Service) Preview(ctx context.Context, input Input) (*Preview, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := DecodeRows(input.Table, s.opts.Delimiter, s.opts.MaxRows)
	if err != nil {
		return nil, err
	}
	source, err := s.LoadSource(ctx, input.Source)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		SourcePages: source.Pages,
		Arity:       s.opts.Arity,
		Rows:        make([]PreviewRow, 0, len(rows)),
		Entries:     make([]string, 0, len(rows)+1),
		Diagnostics: []Diagnostic{},
		Runnable:    true,
	}

	for i, row := range rows {
		index := i + 1
		selection, diags := Resolve(index, row)

		pr := PreviewRow{
			Row:      index,
			Name:     row.Name,
			Filename: EntryName(index, row.Name),
			Pages:    selection.Pages,
			Sheets:   sheetCount(len(selection.Pages), s.opts.Arity),
		}
		if pr.Pages == nil {
			pr.Pages = []int{}
		}
		for _, p := range selection.Pages {
			if p < 1 || p > source.Pages {
				pr.OutOfRange = append(pr.OutOfRange, p)
			}
		}
		if len(pr.OutOfRange) > 0 {
			preview.Runnable = false
		}

		preview.Rows = append(preview.Rows, pr)
		preview.Entries = append(preview.Entries, pr.Filename)
		preview.Diagnostics = append(preview.Diagnostics, diags...)
	}
	preview.Entries = append(preview.Entries, BundleFilename)

	return preview, nil
}

func sheetCount(pages, arity int) int {
	if arity <= 1 {
		return pages
	}
	return (pages + arity - 1) / arity
}
