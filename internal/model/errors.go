package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePipelineFailed  = "PIPELINE_FAILED"
	ErrCodeConfigInvalid   = "CONFIG_INVALID"
	ErrCodeNotADocumentary = "NOT_A_DOCUMENTARY"
	ErrCodeTitleNotFound   = "TITLE_NOT_FOUND"
	ErrCodeInvalidQuery    = "INVALID_QUERY"
)

// NewPipelineFailedError はドキュメンタリー一覧の取得に失敗した場合のエラーを生成する。
func NewPipelineFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePipelineFailed,
		Message:  "Failed to load movies",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewConfigInvalidError は設定不備によりリクエストを処理できない場合のエラーを生成する。
func NewConfigInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeConfigInvalid,
		Message:  "サーバーの設定が不完全です。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewNotADocumentaryError は検索した作品がドキュメンタリーではない場合のエラーを生成する。
func NewNotADocumentaryError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeNotADocumentary,
		Message:  fmt.Sprintf("ドキュメンタリー作品ではありません: %s", title),
		Category: "catalog",
		Action:   "ドキュメンタリー作品のタイトルを入力してください。",
	}
}

// NewTitleNotFoundError は作品が見つからない場合のエラーを生成する。
func NewTitleNotFoundError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeTitleNotFound,
		Message:  fmt.Sprintf("作品が見つかりません: %s", title),
		Category: "catalog",
		Action:   "タイトルの綴りを確認してください。",
	}
}

// NewInvalidQueryError は検索クエリが不正な場合のエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効な検索条件です: %s", reason),
		Category: "validation",
		Action:   "titleパラメータに作品名を指定してください。",
	}
}
