package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/taakinstructies/internal/runs"
)

// multipartOverhead はファイル以外のフォーム部分に許容するバイト数です。
const multipartOverhead = 1 << 20

var (
	tableFields  = []string{"csvData", "csv", "rows"}
	sourceFields = []string{"pdfData", "pdf", "file"}
)

// Generator はアップロード内容からZIPを生成するサービスです。
type Generator interface {
	Generate(ctx context.Context, input Input, progress ProgressReporter) (*Result, error)
}

// Previewer は生成せずに構成だけを返すサービスです。
type Previewer interface {
	Preview(ctx context.Context, input Input) (*Preview, error)
}

// HandlerOptions はハンドラー共通の設定です。
type HandlerOptions struct {
	MaxFileSize int64         // 1パートあたりの上限（バイト）
	Timeout     time.Duration // 1リクエストの処理時間上限
	Runs        runs.Store    // nil の場合は実行記録を残しません
	Logger      *log.Logger
}

func (o HandlerOptions) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// GenerateHandler は POST /api/generate のハンドラーを返します。
func GenerateHandler(svc Generator, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, err := readInput(c, opts.MaxFileSize)
		if err != nil {
			respondWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		tracker := newRunTracker(c.Request.Context(), opts.Runs, opts.logger())
		tracker.start()

		result, err := svc.Generate(ctx, input, tracker.progress)
		if err != nil {
			status, body := classifyError(err)
			tracker.fail(body["code"].(string), body["message"].(string))
			c.Header("X-Run-Id", tracker.id)
			c.JSON(status, body)
			return
		}
		tracker.done(result)

		encodedName := url.PathEscape(result.Filename)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", result.Filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Run-Id", tracker.id)
		c.Header("X-Batch-Warnings", strconv.Itoa(len(result.Diagnostics)))
		c.Data(http.StatusOK, "application/zip", result.Archive)
	}
}

// PreviewHandler は POST /api/generate/preview のハンドラーを返します。
func PreviewHandler(svc Previewer, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, err := readInput(c, opts.MaxFileSize)
		if err != nil {
			respondWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		preview, err := svc.Preview(ctx, input)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func readInput(c *gin.Context, maxFileSize int64) (Input, error) {
	if maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxFileSize+multipartOverhead)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Input{}, newError(CodeLimitExceeded, "アップロードサイズが上限を超えています。", err)
		}
		return Input{}, newError(CodeInvalidInput, "multipart/form-data でCSVとPDFを送信してください。", err)
	}
	defer form.RemoveAll()

	tableHeader := findFile(form, tableFields)
	sourceHeader := findFile(form, sourceFields)
	if tableHeader == nil || sourceHeader == nil {
		return Input{}, newError(CodeInvalidInput, "CSVファイルとPDFファイルの両方が必要です。", nil)
	}

	table, err := readFile(tableHeader, maxFileSize)
	if err != nil {
		return Input{}, err
	}
	source, err := readFile(sourceHeader, maxFileSize)
	if err != nil {
		return Input{}, err
	}

	if !isText(table) {
		return Input{}, newError(CodeInvalidCSV, "CSVファイルはテキスト形式で送信してください。", nil)
	}
	if !mimetype.Detect(source).Is("application/pdf") {
		return Input{}, newError(CodeInvalidInput, "PDFファイルを選択してください。", nil)
	}

	return Input{Table: table, Source: source}, nil
}

func findFile(form *multipart.Form, names []string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, name := range names {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
		if files := form.File[name+"[]"]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func readFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && header.Size > limit {
		return nil, newError(CodeLimitExceeded, fmt.Sprintf("%s のサイズが上限を超えています。", header.Filename), nil)
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if limit > 0 {
		r = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, newError(CodeLimitExceeded, fmt.Sprintf("%s のサイズが上限を超えています。", header.Filename), nil)
	}
	return data, nil
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func respondWithError(c *gin.Context, err error) {
	status, body := classifyError(err)
	c.JSON(status, body)
}

func classifyError(err error) (int, gin.H) {
	if rowErr, oor, ok := OutOfRange(err); ok {
		body := gin.H{
			"code":      CodePageOutOfRange,
			"message":   fmt.Sprintf("ページ %d は存在しません（PDFは %d ページです）。", oor.Page, oor.PageCount),
			"page":      oor.Page,
			"pageCount": oor.PageCount,
		}
		if rowErr != nil {
			body["message"] = fmt.Sprintf("%d 行目（%s）: ページ %d は存在しません（PDFは %d ページです）。", rowErr.Row, rowErr.Name, oor.Page, oor.PageCount)
			body["row"] = rowErr.Row
			body["name"] = rowErr.Name
		}
		return http.StatusUnprocessableEntity, body
	}

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return statusForCode(apiErr.Code), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{
			"code":    CodeProcessingTimeout,
			"message": "処理が時間内に終わりませんでした。",
		}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, gin.H{
			"code":    CodeRequestCanceled,
			"message": "リクエストがキャンセルされました。",
		}
	default:
		return http.StatusInternalServerError, gin.H{
			"code":    CodeInternal,
			"message": "サーバー内部でエラーが発生しました。",
		}
	}
}

func statusForCode(code string) int {
	switch code {
	case CodeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case CodePageOutOfRange:
		return http.StatusUnprocessableEntity
	case CodeUnsupportedPDF, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// runTracker は1リクエスト分の実行記録を更新します。store が nil なら何もしません。
type runTracker struct {
	id     string
	store  runs.Store
	ctx    context.Context
	logger *log.Logger
}

func newRunTracker(ctx context.Context, store runs.Store, logger *log.Logger) *runTracker {
	return &runTracker{
		id:     uuid.NewString(),
		store:  store,
		ctx:    context.WithoutCancel(ctx),
		logger: logger,
	}
}

func (t *runTracker) start() {
	if t.store == nil {
		return
	}
	err := t.store.Upsert(t.ctx, &runs.Record{
		RunID:  t.id,
		Status: runs.StatusRunning,
		Progress: runs.ProgressInfo{
			Percent: 0,
			Stage:   "load",
		},
	})
	if err != nil {
		t.logger.Printf("failed to create run record run=%s: %v", t.id, err)
	}
}

// progress は進捗を記録します。percent は 0〜100 に丸めます。
func (t *runTracker) progress(stage string, percent int) {
	if t.store == nil {
		return
	}
	percent = min(max(percent, 0), 100)
	if err := t.store.UpdateProgress(t.ctx, t.id, runs.ProgressInfo{
		Percent: percent,
		Stage:   stage,
	}); err != nil {
		t.logger.Printf("failed to update progress run=%s: %v", t.id, err)
	}
}

func (t *runTracker) done(result *Result) {
	if t.store == nil {
		return
	}
	summary := &runs.Summary{
		Rows:    len(result.Artifacts),
		Entries: result.Entries(),
	}
	for _, d := range result.Diagnostics {
		summary.Warnings = append(summary.Warnings, runs.Warning{
			Row:     d.Row,
			Name:    d.Name,
			Kind:    string(d.Kind),
			Message: d.Message,
		})
	}
	if err := t.store.MarkDone(t.ctx, t.id, summary); err != nil {
		t.logger.Printf("failed to mark run done run=%s: %v", t.id, err)
	}
}

func (t *runTracker) fail(code, message string) {
	if t.store == nil {
		return
	}
	if err := t.store.MarkFailed(t.ctx, t.id, &runs.ErrorInfo{
		Code:    code,
		Message: message,
	}); err != nil {
		t.logger.Printf("failed to mark run failed run=%s: %v", t.id, err)
	}
}
