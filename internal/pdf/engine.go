// Package pdf は pdfcpu を使った文書操作（読込・ページ抽出・n-up 配置・結合）を提供します。
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// labelDescription はシート上部に行名を印字するスタンプの設定です。
const labelDescription = "fontname:Helvetica, points:9, position:tc, offset:0 -8, scalefactor:1 abs, rotation:0, opacity:1"

var disableConfigDir sync.Once

// Document はシリアライズ済みPDFとそのページ数の組です。
// 生成後に変更されることはありません。
type Document struct {
	Data  []byte
	Pages int
}

// Engine は pdfcpu を呼び出す文書ライブラリのアダプターです。
// メソッドは並行に呼び出して構いません。入力の Document は読み取りのみです。
type Engine struct {
	nupDescription string
	label          bool
}

// EngineOptions は Engine の設定です。
type EngineOptions struct {
	// NUpDescription は pdfcpu の n-up 設定文字列です（例: "form:A4, border:off"）。
	NUpDescription string
	// Label が true の場合、Layout はシート上部にラベルを印字します。
	Label bool
}

// NewEngine は Engine を作成します。
func NewEngine(opts EngineOptions) *Engine {
	disableConfigDir.Do(pdfapi.DisableConfigDir)
	return &Engine{
		nupDescription: opts.NUpDescription,
		label:          opts.Label,
	}
}

// configuration は呼び出しごとに新しい設定を返します。pdfcpu は処理中に設定を書き換えるため共有しません。
func (e *Engine) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// emptyDocument はページを1枚も持たない文書を作ります。
func (e *Engine) emptyDocument() (Document, error) {
	pdfCtx, err := pdfcpu.CreateContextWithXRefTable(e.configuration(), types.PaperSize["A4"])
	if err != nil {
		return Document{}, fmt.Errorf("create empty document: %w", err)
	}
	var out bytes.Buffer
	if err := pdfapi.WriteContext(pdfCtx, &out); err != nil {
		return Document{}, fmt.Errorf("write empty document: %w", err)
	}
	return Document{Data: out.Bytes()}, nil
}

func (e *Engine) read(data []byte) (*model.Context, error) {
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), e.configuration())
	if err != nil {
		return nil, unreadable("read", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, unreadable("page count", err)
	}
	return ctx, nil
}

// Load はアップロードされたバイト列を読み込み、ページ数付きの Document を返します。
func (e *Engine) Load(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	pdfCtx, err := e.read(data)
	if err != nil {
		return Document{}, err
	}
	return Document{Data: data, Pages: pdfCtx.PageCount}, nil
}

// Extract は src から pages の順にページを複製した新しい文書を作ります。
// 同じページの重複や並べ替えを許します。pages が空なら0ページの文書を返します。
func (e *Engine) Extract(ctx context.Context, src Document, pages []int) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	for _, p := range pages {
		if p < 1 || p > src.Pages {
			return Document{}, &OutOfRangeError{Page: p, PageCount: src.Pages}
		}
	}
	if len(pages) == 0 {
		return e.emptyDocument()
	}

	pdfCtx, err := e.read(src.Data)
	if err != nil {
		return Document{}, err
	}
	for _, p := range pages {
		if p > pdfCtx.PageCount {
			return Document{}, &OutOfRangeError{Page: p, PageCount: pdfCtx.PageCount}
		}
	}

	extracted, err := pdfcpu.ExtractPages(pdfCtx, pages, false)
	if err != nil {
		return Document{}, fmt.Errorf("extract pages: %w", err)
	}

	var out bytes.Buffer
	if err := pdfapi.WriteContext(extracted, &out); err != nil {
		return Document{}, fmt.Errorf("write extracted document: %w", err)
	}
	return Document{Data: out.Bytes(), Pages: len(pages)}, nil
}

// Layout は doc のページを arity 枚ずつ1シートに並べた文書を作ります。
// 配置は左から右、上から下の順です。最後のシートの空きセルは空白のままです。
// arity が1の場合は配置を行わず、ラベルの印字だけを行います。
func (e *Engine) Layout(ctx context.Context, doc Document, label string, arity int) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if arity < 1 {
		return Document{}, fmt.Errorf("invalid layout arity %d", arity)
	}
	if doc.Pages == 0 {
		return e.emptyDocument()
	}

	data := doc.Data
	sheets := doc.Pages
	if arity > 1 {
		conf := e.configuration()
		nup, err := pdfapi.PDFNUpConfig(arity, e.nupDescription, conf)
		if err != nil {
			return Document{}, fmt.Errorf("n-up configuration: %w", err)
		}

		var out bytes.Buffer
		if err := pdfapi.NUp(bytes.NewReader(doc.Data), &out, nil, nil, nup, conf); err != nil {
			return Document{}, fmt.Errorf("n-up layout: %w", err)
		}
		data = out.Bytes()
		sheets = (doc.Pages + arity - 1) / arity
	}

	if e.label && label != "" {
		stamped, err := e.stamp(data, label)
		if err != nil {
			return Document{}, err
		}
		data = stamped
	}

	return Document{Data: data, Pages: sheets}, nil
}

func (e *Engine) stamp(data []byte, label string) ([]byte, error) {
	wm, err := pdfapi.TextWatermark(label, labelDescription, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("label stamp configuration: %w", err)
	}
	var out bytes.Buffer
	if err := pdfapi.AddWatermarks(bytes.NewReader(data), &out, nil, wm, e.configuration()); err != nil {
		return nil, fmt.Errorf("label stamp: %w", err)
	}
	return out.Bytes(), nil
}

// Merge は docs のページを与えられた順に連結します。0ページの文書は読み飛ばします。
func (e *Engine) Merge(ctx context.Context, docs []Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	readers := make([]io.ReadSeeker, 0, len(docs))
	total := 0
	for _, d := range docs {
		if d.Pages == 0 {
			continue
		}
		readers = append(readers, bytes.NewReader(d.Data))
		total += d.Pages
	}

	switch len(readers) {
	case 0:
		return e.emptyDocument()
	case 1:
		for _, d := range docs {
			if d.Pages > 0 {
				return d, nil
			}
		}
	}

	var out bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &out, false, e.configuration()); err != nil {
		return Document{}, fmt.Errorf("merge documents: %w", err)
	}
	return Document{Data: out.Bytes(), Pages: total}, nil
}
