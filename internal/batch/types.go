package batch

import "github.com/yourusername/taakinstructies/internal/pdf"

const (
	// ArchiveFilename はレスポンスで返すZIPのファイル名です。
	ArchiveFilename = "taakinstructies.zip"
	// BundleFilename は全行を連結したPDFのエントリー名です。
	BundleFilename = "bundled.pdf"
	// FallbackName はサニタイズ後に名前が空になった場合の代替名です。
	FallbackName = "file"
)

// Row はCSVの1行です。Fields には name / pages 以外の列がそのまま入ります。
type Row struct {
	Name     string
	PageSpec string
	Fields   map[string]string
}

// Selection は行から解決されたページ番号の並び（1-based、重複可）です。
type Selection struct {
	Pages []int
}

// Artifact は1行分の配置済みPDFです。
type Artifact struct {
	Row         int    // 1-based の行番号
	Name        string // CSV 上の名前
	Filename    string // ZIP 内のエントリー名
	SourcePages int    // 抽出したページ数
	Document    pdf.Document
}

// DiagnosticKind は入力の欠落・補正の種類です。
type DiagnosticKind string

const (
	DiagnosticDroppedToken   DiagnosticKind = "dropped_token"
	DiagnosticTruncatedToken DiagnosticKind = "truncated_token"
	DiagnosticEmptySelection DiagnosticKind = "empty_selection"
	DiagnosticNameFallback   DiagnosticKind = "name_fallback"
)

// Diagnostic はエラーにはしないが利用者に知らせるべき入力の補正です。
type Diagnostic struct {
	Row     int            `json:"row"`
	Name    string         `json:"name"`
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

// Input は1リクエスト分のアップロード内容です。
type Input struct {
	Table  []byte
	Source []byte
}

// Result は生成処理の成果です。
type Result struct {
	Filename    string
	Archive     []byte
	Artifacts   []Artifact
	Bundle      pdf.Document
	SourcePages int
	Diagnostics []Diagnostic
}

// Entries は ZIP に含まれるエントリー名を順に返します。
func (r *Result) Entries() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Artifacts)+1)
	for _, a := range r.Artifacts {
		names = append(names, a.Filename)
	}
	return append(names, BundleFilename)
}
