// Package model はドメインモデルを定義する。
package model

import "time"

// Post は投稿を表す。
// Likesはユーザーidの集合（同一ユーザーは最大1回）、
// Commentsは挿入順＝時系列順の埋め込みコメント列。
type Post struct {
	ID        string
	UserID    string
	Content   string // サニタイズ済み
	Image     string // /uploads/ 相対パス。画像なしの場合は空文字列
	Likes     []string
	Comments  []Comment
	CreatedAt time.Time
}

// Comment は投稿に埋め込まれるコメントを表す。
// 単独でアドレス可能にはならず、常に親Postを経由して取得する。
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Content   string // サニタイズ済み
	CreatedAt time.Time
}

// UserRef はレスポンス展開用のユーザー参照（公開フィールドのみ）。
type UserRef struct {
	ID             string
	Name           string
	ProfilePicture string
}

// PostWithAuthors は投稿とユーザー参照・コメント作者参照を展開したモデル。
// 一覧・詳細レスポンスの組み立てに使用する。
type PostWithAuthors struct {
	Post
	Author         UserRef
	CommentAuthors map[string]UserRef // userID -> UserRef
}
