package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/taakinstructies/internal/pdf"
)

// fakeEngine は文書の中身を文字列で表す DocumentEngine です。
// Extract は "p2 p1 p2" のようにページ番号を並べ、Layout はそれを "[label: ...]" で包みます。
type fakeEngine struct {
	sourcePages int
	// delay はページ指定ごとの Extract の待ち時間です。完了順を入れ替えるのに使います。
	delay func(pages []int) time.Duration
	// fail が nil 以外を返すと Extract はそのエラーで失敗します。
	fail func(pages []int) error
}

func (f *fakeEngine) Load(ctx context.Context, data []byte) (pdf.Document, error) {
	if string(data) == "corrupt" {
		return pdf.Document{}, fmt.Errorf("load: %w", pdf.ErrUnreadable)
	}
	return pdf.Document{Data: data, Pages: f.sourcePages}, nil
}

func (f *fakeEngine) Extract(ctx context.Context, src pdf.Document, pages []int) (pdf.Document, error) {
	if f.delay != nil {
		select {
		case <-time.After(f.delay(pages)):
		case <-ctx.Done():
			return pdf.Document{}, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(pages); err != nil {
			return pdf.Document{}, err
		}
	}
	for _, p := range pages {
		if p < 1 || p > src.Pages {
			return pdf.Document{}, &pdf.OutOfRangeError{Page: p, PageCount: src.Pages}
		}
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = "p" + strconv.Itoa(p)
	}
	return pdf.Document{Data: []byte(strings.Join(parts, " ")), Pages: len(pages)}, nil
}

func (f *fakeEngine) Layout(ctx context.Context, doc pdf.Document, label string, arity int) (pdf.Document, error) {
	if doc.Pages == 0 {
		return pdf.Document{}, nil
	}
	return pdf.Document{
		Data:  []byte(fmt.Sprintf("[%s: %s]", label, doc.Data)),
		Pages: (doc.Pages + arity - 1) / arity,
	}, nil
}

func (f *fakeEngine) Merge(ctx context.Context, docs []pdf.Document) (pdf.Document, error) {
	var parts []string
	total := 0
	for _, d := range docs {
		if d.Pages == 0 {
			continue
		}
		parts = append(parts, string(d.Data))
		total += d.Pages
	}
	return pdf.Document{Data: []byte(strings.Join(parts, "")), Pages: total}, nil
}

func (f *fakeEngine) mustLoad(t *testing.T) pdf.Document {
	t.Helper()
	doc, err := f.Load(context.Background(), []byte("source"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return doc
}
