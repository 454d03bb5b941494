// Package batch はCSVの各行に従って元PDFからページを抜き出し、
// 4ページ/シートで配置したPDFと連結PDFをZIPにまとめる処理を提供します。
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/taakinstructies/internal/pdf"
)

// DocumentEngine は文書ライブラリへの操作です。実装は並行呼び出しに耐える必要があります。
type DocumentEngine interface {
	Load(ctx context.Context, data []byte) (pdf.Document, error)
	Extract(ctx context.Context, src pdf.Document, pages []int) (pdf.Document, error)
	Layout(ctx context.Context, doc pdf.Document, label string, arity int) (pdf.Document, error)
	Merge(ctx context.Context, docs []pdf.Document) (pdf.Document, error)
}

// ProgressReporter は進捗更新用コールバックです。
// 行の処理は並行に進むため、複数のゴルーチンから呼ばれることがあります。
type ProgressReporter func(stage string, percent int)

func (p ProgressReporter) report(stage string, percent int) {
	if p != nil {
		p(stage, percent)
	}
}

// Options は Service の設定です。
type Options struct {
	Delimiter   rune
	MaxRows     int
	MaxPages    int
	Arity       int
	Concurrency int
}

// Service はバッチ生成処理を実行します。
type Service struct {
	engine DocumentEngine
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// NewService は Service を作成します。logger が nil の場合は log.Default() を使います。
func NewService(engine DocumentEngine, opts Options, logger *log.Logger) *Service {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.Arity <= 0 {
		opts.Arity = 4
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		engine: engine,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) concurrency(rows int) int {
	n := s.opts.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > rows {
		n = rows
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Generate はアップロード内容からZIPを生成します。
// どこかで失敗した場合は成果物を一切返しません。
func (s *Service) Generate(ctx context.Context, input Input, progress ProgressReporter) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := s.now()

	rows, err := DecodeRows(input.Table, s.opts.Delimiter, s.opts.MaxRows)
	if err != nil {
		return nil, err
	}

	source, err := s.LoadSource(ctx, input.Source)
	if err != nil {
		return nil, err
	}
	progress.report("load", 10)
	s.logger.Printf("batch start: rows=%d sourcePages=%d arity=%d", len(rows), source.Pages, s.opts.Arity)

	artifacts, diags, err := s.Run(ctx, rows, source, progress)
	if err != nil {
		if rowErr, oor, ok := OutOfRange(err); ok && rowErr != nil {
			s.logger.Printf("batch aborted: row=%d name=%q page=%d pageCount=%d", rowErr.Row, rowErr.Name, oor.Page, oor.PageCount)
		} else {
			s.logger.Printf("batch aborted: %v", err)
		}
		return nil, err
	}
	for _, d := range diags {
		s.logger.Printf("batch warning: row=%d kind=%s %s", d.Row, d.Kind, d.Message)
	}

	progress.report("merge", 85)
	bundle, err := s.Merge(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	progress.report("archive", 95)
	archive, err := Archive(artifacts, bundle.Data, started)
	if err != nil {
		return nil, err
	}

	progress.report("completed", 100)
	s.logger.Printf("batch done: rows=%d bundlePages=%d archiveBytes=%d warnings=%d elapsed=%s",
		len(artifacts), bundle.Pages, len(archive), len(diags), s.now().Sub(started))

	return &Result{
		Filename:    ArchiveFilename,
		Archive:     archive,
		Artifacts:   artifacts,
		Bundle:      bundle,
		SourcePages: source.Pages,
		Diagnostics: diags,
	}, nil
}

// LoadSource は元PDFを読み込み、ページ数の上限を確認します。
func (s *Service) LoadSource(ctx context.Context, data []byte) (pdf.Document, error) {
	if len(data) == 0 {
		return pdf.Document{}, newError(CodeInvalidInput, "PDFファイルが空です。", nil)
	}
	source, err := s.engine.Load(ctx, data)
	if err != nil {
		if errors.Is(err, pdf.ErrUnreadable) {
			return pdf.Document{}, newError(CodeUnsupportedPDF, "PDFを読み込めませんでした。ファイルが破損していないか確認してください。", err)
		}
		return pdf.Document{}, err
	}
	if s.opts.MaxPages > 0 && source.Pages > s.opts.MaxPages {
		return pdf.Document{}, newError(CodeLimitExceeded, fmt.Sprintf("PDFのページ数が上限（%dページ）を超えています。", s.opts.MaxPages), nil)
	}
	return source, nil
}

// Run は各行を並行に処理し、入力の行順に並んだ成果物を返します。
// 範囲外のページ指定は処理を始める前に行順で確認するため、常に最初の該当行が報告されます。
// 1行でも失敗するとほかの行の処理を取り消し、成果物を返さずにエラーを返します。
func (s *Service) Run(ctx context.Context, rows []Row, source pdf.Document, progress ProgressReporter) ([]Artifact, []Diagnostic, error) {
	selections := make([]Selection, len(rows))
	diagSlots := make([][]Diagnostic, len(rows))
	for i, row := range rows {
		selection, diags := Resolve(i+1, row)
		for _, p := range selection.Pages {
			if p < 1 || p > source.Pages {
				return nil, nil, &RowError{Row: i + 1, Name: row.Name, Err: &pdf.OutOfRangeError{Page: p, PageCount: source.Pages}}
			}
		}
		selections[i] = selection
		diagSlots[i] = diags
	}

	artifacts := make([]Artifact, len(rows))
	errSlots := make([]error, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency(len(rows)))

	var done atomic.Int64
	total := int64(len(rows))

	for i, row := range rows {
		g.Go(func() error {
			artifact, err := s.runRow(gctx, i+1, row, source, selections[i])
			if err != nil {
				errSlots[i] = err
				return err
			}
			artifacts[i] = artifact

			n := done.Add(1)
			progress.report("process", 10+int(70*n/total))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, firstRowError(errSlots, err)
	}

	var diags []Diagnostic
	for _, d := range diagSlots {
		diags = append(diags, d...)
	}
	return artifacts, diags, nil
}

// firstRowError は行順で最初の失敗を返します。
// ほかの行の失敗によって取り消されただけの行は飛ばします。
func firstRowError(errs []error, fallback error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if canceled == nil {
			canceled = err
		}
	}
	if canceled != nil {
		return canceled
	}
	return fallback
}

func (s *Service) runRow(ctx context.Context, index int, row Row, source pdf.Document, selection Selection) (Artifact, error) {
	label, _ := SanitizeName(row.Name)

	extracted, err := s.engine.Extract(ctx, source, selection.Pages)
	if err != nil {
		return Artifact{}, &RowError{Row: index, Name: row.Name, Err: err}
	}

	laidOut, err := s.engine.Layout(ctx, extracted, label, s.opts.Arity)
	if err != nil {
		return Artifact{}, &RowError{Row: index, Name: row.Name, Err: err}
	}

	return Artifact{
		Row:         index,
		Name:        row.Name,
		Filename:    EntryName(index, row.Name),
		SourcePages: len(selection.Pages),
		Document:    laidOut,
	}, nil
}

// Merge は成果物を行の順に連結した1つのPDFを作ります。
func (s *Service) Merge(ctx context.Context, artifacts []Artifact) (pdf.Document, error) {
	docs := make([]pdf.Document, len(artifacts))
	for i, a := range artifacts {
		docs[i] = a.Document
	}
	bundle, err := s.engine.Merge(ctx, docs)
	if err != nil {
		return pdf.Document{}, fmt.Errorf("連結PDFの生成に失敗しました: %w", err)
	}
	return bundle, nil
}
