package api

import (
	"errors"
	"fmt"
)

// ErrEndpointNotImplemented は未実装と登録済みのエンドポイントへの呼び出しを示す。
// ネットワーク呼び出しを行わずに即時失敗する。
var ErrEndpointNotImplemented = errors.New("endpoint not implemented")

// genericFailureMessage はサーバーがメッセージを返さなかった場合の既定メッセージ。
const genericFailureMessage = "リクエストに失敗しました。"

// NetworkError はトランスポート層の失敗（接続不可、タイムアウト等）を表す。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError はJSONボディを伴う非2xxレスポンスを表す。
// Messageにはサーバーが返したエラーメッセージを保持する。
type HTTPError struct {
	StatusCode int
	Code       string // APIエラーコード。サーバーが返さない場合は空
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Message)
}

// NonJSONResponseError は2xxだがJSONでないレスポンスを表す。
// ステータスが成功でもハードエラーとして扱う。
type NonJSONResponseError struct {
	StatusCode  int
	ContentType string
}

func (e *NonJSONResponseError) Error() string {
	return fmt.Sprintf("server returned non-JSON response (status %d, content-type %q)", e.StatusCode, e.ContentType)
}
