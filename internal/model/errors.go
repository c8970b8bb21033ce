// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, social, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailTaken            = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodePostNotFound          = "POST_NOT_FOUND"
	ErrCodeDuplicateLike         = "DUPLICATE_LIKE"
	ErrCodeInvalidImage          = "INVALID_IMAGE"
	ErrCodeImageTooLarge         = "IMAGE_TOO_LARGE"
	ErrCodeNameRequired          = "NAME_REQUIRED"
	ErrCodeContentRequired       = "CONTENT_REQUIRED"
	ErrCodeSelfFriendRequest     = "SELF_FRIEND_REQUEST"
	ErrCodeDuplicateFriendReq    = "DUPLICATE_FRIEND_REQUEST"
	ErrCodeAlreadyFriends        = "ALREADY_FRIENDS"
	ErrCodeFriendReqNotFound     = "FRIEND_REQUEST_NOT_FOUND"
	ErrCodeFriendReqNotPending   = "FRIEND_REQUEST_NOT_PENDING"
	ErrCodeFriendshipNotFound    = "FRIENDSHIP_NOT_FOUND"
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeFetchFailed           = "FETCH_FAILED"
)

// NewEmailTakenError は登録済みメールアドレスエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "social",
		Action:   "投稿IDを確認してください。",
	}
}

// NewDuplicateLikeError は同一ユーザーによる二重いいねエラーを生成する。
func NewDuplicateLikeError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLike,
		Message:  "この投稿には既にいいねしています。",
		Category: "validation",
		Action:   "1つの投稿にいいねできるのは1回までです。",
	}
}

// NewInvalidImageError は画像フォーマット不正エラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("無効な画像です: %s", reason),
		Category: "validation",
		Action:   "data:image/ 形式のbase64画像を指定してください。",
	}
}

// NewImageTooLargeError は画像サイズ超過エラーを生成する。
func NewImageTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  fmt.Sprintf("画像が大きすぎます（最大 %dMB）。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "画像を縮小してから再度アップロードしてください。",
	}
}

// NewNameRequiredError は名前未入力エラーを生成する。
func NewNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNameRequired,
		Message:  "名前は必須です。",
		Category: "validation",
		Action:   "名前を入力してください。",
	}
}

// NewContentRequiredError は本文未入力エラーを生成する。
func NewContentRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeContentRequired,
		Message:  "本文は必須です。",
		Category: "validation",
		Action:   "本文を入力してください。",
	}
}

// NewSelfFriendRequestError は自分自身への友達申請エラーを生成する。
func NewSelfFriendRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFriendRequest,
		Message:  "自分自身に友達申請はできません。",
		Category: "social",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewDuplicateFriendRequestError は重複した友達申請エラーを生成する。
func NewDuplicateFriendRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFriendReq,
		Message:  "このユーザーへの友達申請は既に保留中です。",
		Category: "social",
		Action:   "相手の承認をお待ちください。",
	}
}

// NewAlreadyFriendsError は既に友達関係にある場合のエラーを生成する。
func NewAlreadyFriendsError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFriends,
		Message:  "このユーザーとは既に友達です。",
		Category: "social",
		Action:   "友達一覧を確認してください。",
	}
}

// NewFriendRequestNotFoundError は友達申請未検出エラーを生成する。
func NewFriendRequestNotFoundError(requestID string) *APIError {
	return &APIError{
		Code:     ErrCodeFriendReqNotFound,
		Message:  fmt.Sprintf("指定された友達申請が見つかりません: %s", requestID),
		Category: "social",
		Action:   "申請一覧を確認してください。",
	}
}

// NewFriendRequestNotPendingError は保留中でない申請への操作エラーを生成する。
// 承認・拒否は受信者本人が保留中の申請に対してのみ実行できる。
func NewFriendRequestNotPendingError() *APIError {
	return &APIError{
		Code:     ErrCodeFriendReqNotPending,
		Message:  "この友達申請は保留中ではないか、操作権限がありません。",
		Category: "social",
		Action:   "申請一覧を更新してから再度お試しください。",
	}
}

// NewFriendshipNotFoundError は友達関係未検出エラーを生成する。
func NewFriendshipNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFriendshipNotFound,
		Message:  "このユーザーとの友達関係が見つかりません。",
		Category: "social",
		Action:   "友達一覧を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は外部URL取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "validation",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
