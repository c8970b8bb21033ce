// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには決して含めない。
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Bio            string
	ProfilePicture string // /uploads/ 相対パス、またはdata:image形式のインラインデータ
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserStats はユーザーの投稿数・獲得いいね数・獲得コメント数の集計を表す。
type UserStats struct {
	Posts    int
	Likes    int
	Comments int
}
