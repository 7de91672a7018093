package post

import (
	"regexp"
	"strings"
)

var slugDisallowed = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// Slugify はタイトルからURL用のslugを生成する。
// 空白をハイフンに置き換えて小文字化し、英数字とハイフン以外を取り除く。
//
//	"10 Things To Eat!" → "10-things-to-eat"
func Slugify(title string) string {
	s := strings.ReplaceAll(title, " ", "-")
	s = strings.ToLower(s)
	return slugDisallowed.ReplaceAllString(s, "")
}
