package model

import "time"

// 投稿のデフォルト値
const (
	DefaultPostImage    = "https://www.hostinger.com/tutorials/wp-content/uploads/sites/2/2021/09/how-to-write-a-blog-post.png"
	DefaultPostCategory = "uncategorized"
)

// Post は管理者が執筆するブログ記事を表す。
// UserIDは執筆者のアカウントIDで、リレーション制約は持たない。
type Post struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	Category  string    `json:"category"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostFilter は投稿一覧の絞り込み条件を表す。空文字のフィールドは条件に含めない。
type PostFilter struct {
	UserID     string
	Category   string
	Slug       string
	PostID     string
	SearchTerm string
}

// PostUpdate は投稿更新の内容を表す。
type PostUpdate struct {
	Title    string
	Content  string
	Category string
	Image    string
}
