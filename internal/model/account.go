package model

import "time"

// DefaultProfilePicture はアバター未指定時に使用する画像URL。
const DefaultProfilePicture = "https://cdn.pixabay.com/photo/2015/10/05/22/37/blank-profile-picture-973460_1280.png"

// Account はブログ利用者のアカウントを表す。
// Passwordはbcryptハッシュで、JSONには決して出力しない。
type Account struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	ProfilePicture string    `json:"profilePicture"`
	IsAdmin        bool      `json:"isAdmin"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AccountUpdate はプロフィール更新の差分を表す。nilのフィールドは変更しない。
type AccountUpdate struct {
	Username       *string
	Email          *string
	Password       *string // ハッシュ済みの値
	ProfilePicture *string
}

// ListOptions は一覧取得のページング条件を表す。
type ListOptions struct {
	StartIndex int
	Limit      int
	Ascending  bool
}

// 一覧取得のデフォルト値
const (
	DefaultListLimit = 9
	MaxListLimit     = 100
)

// OneMonthBefore はnowの暦上1か月前の日付（0時0分）を返す。
// 直近1か月の作成件数の集計開始時刻として使う。
func OneMonthBefore(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-1, now.Day(), 0, 0, 0, 0, now.Location())
}
