package model

import "time"

// CommentMaxLength はコメント本文の最大文字数。
const CommentMaxLength = 200

// Comment は投稿に対するコメントを表す。
// NumberOfLikesは常にlen(Likes)と一致する。
type Comment struct {
	ID            string    `json:"_id"`
	Content       string    `json:"content"`
	PostID        string    `json:"postId"`
	UserID        string    `json:"userId"`
	Likes         []string  `json:"likes"`
	NumberOfLikes int       `json:"numberOfLikes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
