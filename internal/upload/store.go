// Package upload は画像の受け入れと保存を提供する。
//
// インラインbase64（data URL）とmultipartの両方の入力を受け付け、
// サイズ上限を超えるものはディスクへの書き込み前に拒否する。
// 保存後はWebから参照する相対パス（/uploads/...）のみを呼び出し側へ返す。
package upload

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tellme/internal/model"
)

// URLPrefix は保存済み画像を公開するパスプレフィックス。
const URLPrefix = "/uploads"

// dataURLPattern はインラインbase64画像の形式を検証する。
// 例: data:image/png;base64,iVBORw0...
var dataURLPattern = regexp.MustCompile(`^data:image/([A-Za-z+.-]+);base64,(.+)$`)

// Store は画像ファイルの保存先ディレクトリとサイズ上限を保持する。
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore は保存先ディレクトリを作成してStoreを生成する。
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir は保存先ディレクトリを返す。静的配信のルートとして使用する。
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes は受け入れる画像サイズの上限を返す。
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// DecodeDataURL はdata:image形式のURLを検証・デコードする。
// 上限超過はbase64デコード結果のバイト数で判定し、
// 形式不正・サイズ超過の場合はAPIErrorを返す。
func (s *Store) DecodeDataURL(dataURL string) (data []byte, ext string, err error) {
	matches := dataURLPattern.FindStringSubmatch(dataURL)
	if matches == nil {
		return nil, "", model.NewInvalidImageError("data:image/...;base64, 形式ではありません")
	}

	ext = strings.ToLower(matches[1])
	if ext == "jpeg" {
		ext = "jpg"
	}

	// base64は3バイトを4文字に符号化するため、デコード前に上限の概算チェックができる
	if int64(len(matches[2])) > (s.maxBytes*4)/3+4 {
		return nil, "", model.NewImageTooLargeError(s.maxBytes)
	}

	data, decodeErr := base64.StdEncoding.DecodeString(matches[2])
	if decodeErr != nil {
		return nil, "", model.NewInvalidImageError("base64のデコードに失敗しました")
	}

	if int64(len(data)) > s.maxBytes {
		return nil, "", model.NewImageTooLargeError(s.maxBytes)
	}

	return data, ext, nil
}

// SaveDataURL はインラインbase64画像をデコードしてファイルに保存する。
// 検証・サイズチェックはすべて書き込み前に完了する。
// 戻り値はWeb参照用の相対パス（例: /uploads/post_1700000000000_ab12.png）。
func (s *Store) SaveDataURL(prefix, dataURL string) (string, error) {
	data, ext, err := s.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return s.saveBytes(prefix, ext, data)
}

// SaveMultipart はmultipartフォームの画像ファイルを保存する。
// Content-Typeがimage/*でないファイル、サイズ上限超過は拒否する。
func (s *Store) SaveMultipart(prefix string, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", model.NewInvalidImageError(fmt.Sprintf("画像ではないContent-Typeです: %s", contentType))
	}

	// ヘッダー申告サイズで先に弾き、読み込み時にも上限+1で再確認する
	if header.Size > s.maxBytes {
		return "", model.NewImageTooLargeError(s.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", model.NewImageTooLargeError(s.maxBytes)
	}

	ext := extFromContentType(contentType)
	return s.saveBytes(prefix, ext, data)
}

// SaveBytes は取得済みの画像バイト列を保存する。
// プロフィール画像のURL取得経路で使用する。
func (s *Store) SaveBytes(prefix, contentType string, data []byte) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", model.NewInvalidImageError(fmt.Sprintf("画像ではないContent-Typeです: %s", contentType))
	}
	if int64(len(data)) > s.maxBytes {
		return "", model.NewImageTooLargeError(s.maxBytes)
	}
	return s.saveBytes(prefix, extFromContentType(contentType), data)
}

// saveBytes は一意なファイル名を生成してデータを書き込む。
func (s *Store) saveBytes(prefix, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%d_%s.%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return URLPrefix + "/" + name, nil
}

// extFromContentType はContent-Typeから拡張子を導出する。
func extFromContentType(contentType string) string {
	ext := strings.TrimPrefix(contentType, "image/")
	if i := strings.Index(ext, ";"); i >= 0 {
		ext = ext[:i]
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "" {
		ext = "bin"
	}
	return ext
}
