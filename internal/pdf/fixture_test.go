package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// buildDocument は sizes の大きさのページを持つ文書を作ります。
// 各ページには対角線が1本だけ描かれます。
func buildDocument(t *testing.T, sizes ...types.Dim) Document {
	t.Helper()
	ctx, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(), types.PaperSize["A4"])
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}
	root, err := ctx.Pages()
	if err != nil {
		t.Fatalf("failed to find page tree: %v", err)
	}
	pagesDict, err := ctx.DereferenceDict(*root)
	if err != nil {
		t.Fatalf("failed to read page tree: %v", err)
	}

	kids := types.Array{}
	for _, dim := range sizes {
		w := strconv.FormatFloat(dim.Width, 'f', -1, 64)
		h := strconv.FormatFloat(dim.Height, 'f', -1, 64)
		sd, err := ctx.NewStreamDictForBuf([]byte(fmt.Sprintf("0 0 m %s %s l S", w, h)))
		if err != nil {
			t.Fatalf("failed to create content stream: %v", err)
		}
		if err := sd.Encode(); err != nil {
			t.Fatalf("failed to encode content stream: %v", err)
		}
		contents, err := ctx.IndRefForNewObject(*sd)
		if err != nil {
			t.Fatalf("failed to add content stream: %v", err)
		}

		page, err := ctx.IndRefForNewObject(types.Dict(map[string]types.Object{
			"Type":      types.Name("Page"),
			"Parent":    *root,
			"Resources": types.NewDict(),
			"MediaBox":  types.RectForDim(dim.Width, dim.Height).Array(),
			"Contents":  *contents,
		}))
		if err != nil {
			t.Fatalf("failed to add page: %v", err)
		}
		kids = append(kids, *page)
	}
	pagesDict.Update("Kids", kids)
	pagesDict.Update("Count", types.Integer(len(sizes)))

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return Document{Data: out.Bytes(), Pages: len(sizes)}
}

// fixture はページ i（1-based）の幅が 100*i になる文書を作ります。
func fixture(t *testing.T, pages int) Document {
	t.Helper()
	sizes := make([]types.Dim, pages)
	for i := range sizes {
		sizes[i] = types.Dim{Width: float64(100 * (i + 1)), Height: 800}
	}
	return buildDocument(t, sizes...)
}

func readContext(t *testing.T, data []byte) *model.Context {
	t.Helper()
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("failed to count pages: %v", err)
	}
	return ctx
}

// pageWidths は文書を読み直し、各ページの MediaBox の幅を返します。
func pageWidths(t *testing.T, data []byte) []float64 {
	t.Helper()
	ctx := readContext(t, data)
	widths := make([]float64, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		_, _, inh, err := ctx.PageDict(i, false)
		if err != nil {
			t.Fatalf("failed to read page %d: %v", i, err)
		}
		if inh == nil || inh.MediaBox == nil {
			t.Fatalf("page %d has no media box", i)
		}
		widths = append(widths, inh.MediaBox.Width())
	}
	return widths
}

// pageContents は各ページのデコード済みコンテンツストリームを返します。
func pageContents(t *testing.T, data []byte) [][]byte {
	t.Helper()
	ctx := readContext(t, data)
	contents := make([][]byte, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		d, _, _, err := ctx.PageDict(i, false)
		if err != nil {
			t.Fatalf("failed to read page %d: %v", i, err)
		}
		content, err := ctx.PageContent(d, i)
		if err != nil {
			t.Fatalf("failed to read content of page %d: %v", i, err)
		}
		contents = append(contents, content)
	}
	return contents
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	return readContext(t, data).PageCount
}
