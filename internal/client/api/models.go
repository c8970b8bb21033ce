package api

import "time"

// User はAPIレスポンス上のユーザーを表す。
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserRef は投稿・コメント・友達レスポンスに展開されるユーザー参照。
type UserRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

// Comment は投稿に埋め込まれるコメントを表す。
type Comment struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post はAPIレスポンス上の投稿を表す。
type Post struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats はユーザーの投稿・いいね・コメントの集計を表す。
type Stats struct {
	Posts    int `json:"posts"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// AuthResponse は登録・ログインのレスポンスを表す。
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AvatarResponse はアバター更新のレスポンスを表す。
type AvatarResponse struct {
	ProfilePicture string `json:"profilePicture"`
	User           User   `json:"user"`
}

// Friend は成立した友達関係を表す。
type Friend struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendRequest は友達申請を表す。
type FriendRequest struct {
	ID         string    `json:"id"`
	Sender     UserRef   `json:"sender"`
	ReceiverID string    `json:"receiverId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}
