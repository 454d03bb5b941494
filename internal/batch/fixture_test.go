package batch

import (
	"bytes"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// sourceFixture は A4 のページを pages 枚持つ元PDFを作ります。
func sourceFixture(t *testing.T, pages int) []byte {
	t.Helper()
	a4 := types.PaperSize["A4"]
	ctx, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(), a4)
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
	for i := 0; i < pages; i++ {
		sd, err := ctx.NewStreamDictForBuf([]byte("0 0 m 595 842 l S"))
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
			"MediaBox":  types.RectForDim(a4.Width, a4.Height).Array(),
			"Contents":  *contents,
		}))
		if err != nil {
			t.Fatalf("failed to add page: %v", err)
		}
		kids = append(kids, *page)
	}
	pagesDict.Update("Kids", kids)
	pagesDict.Update("Count", types.Integer(pages))

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return out.Bytes()
}

func countPages(t *testing.T, data []byte) int {
	t.Helper()
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("failed to count pages: %v", err)
	}
	return ctx.PageCount
}
