package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// avatarBase64Request はインライン画像によるアバター更新リクエストのボディ。
type avatarBase64Request struct {
	ImageBase64 string `json:"imageBase64"`
}

// avatarURLRequest は画像URL指定によるアバター更新リクエストのボディ。
type avatarURLRequest struct {
	URL string `json:"url"`
}

// UpdateProfile は名前と自己紹介を更新する。
func (c *Client) UpdateProfile(ctx context.Context, name, bio string) (*User, error) {
	var user User
	err := c.request(ctx, http.MethodPut, "/users/me", updateProfileRequest{
		Name: name,
		Bio:  bio,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UploadAvatar は画像ファイルをmultipartでアップロードしてアバターを更新する。
// サーバーはパートのContent-Typeがimage/*であることを要求するため、
// ファイル名の拡張子から画像タイプを導出できない場合はローカルでエラーを返す。
func (c *Client) UploadAvatar(ctx context.Context, filename string, image io.Reader) (*AvatarResponse, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unsupported image type: %s", filename)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(imagePartHeader(filename, contentType))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	var resp AvatarResponse
	if err := c.requestMultipart(ctx, "/users/me/avatar", &buf, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// imagePartHeader は"image"フィールドのmultipartヘッダーを組み立てる。
// CreateFormFileはContent-Typeを常にapplication/octet-streamにするため使わない。
func imagePartHeader(filename, contentType string) textproto.MIMEHeader {
	quoted := strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(filename)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoted))
	h.Set("Content-Type", contentType)
	return h
}

// UploadAvatarBase64 はdata:image形式のインライン画像でアバターを更新する。
func (c *Client) UploadAvatarBase64(ctx context.Context, imageDataURL string) (*AvatarResponse, error) {
	var resp AvatarResponse
	err := c.request(ctx, http.MethodPost, "/users/me/avatar-base64", avatarBase64Request{
		ImageBase64: imageDataURL,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadAvatarFromURL は画像URLを指定してアバターを更新する。
// 画像の取得はサーバー側で行われる。
func (c *Client) UploadAvatarFromURL(ctx context.Context, url string) (*AvatarResponse, error) {
	var resp AvatarResponse
	err := c.request(ctx, http.MethodPost, "/users/me/avatar-url", avatarURLRequest{
		URL: url,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
