package post

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/bloghub/internal/model"
)

const (
	// DefaultFeedLimit はRSSに含める投稿数のデフォルト値。
	DefaultFeedLimit = 20
	// MaxFeedLimit はRSSに含める投稿数の上限。
	MaxFeedLimit = 50

	feedTitle       = "bloghub"
	feedDescription = "Latest posts"
	excerptLength   = 280
)

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	Category    string  `xml:"category,omitempty"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Feed は最新の投稿をRSS 2.0文書として返す。
// 各記事の説明には本文HTMLから抽出したプレーンテキストの抜粋を使う。
func (s *Service) Feed(ctx context.Context, baseURL string, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	posts, err := s.posts.List(ctx, model.PostFilter{}, model.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts for feed: %w", err)
	}

	base := strings.TrimRight(baseURL, "/")
	channel := rssChannel{
		Title:       feedTitle,
		Link:        base,
		Description: feedDescription,
		Items:       make([]rssItem, 0, len(posts)),
	}
	if len(posts) > 0 {
		channel.LastBuildDate = posts[0].UpdatedAt.UTC().Format(time.RFC1123Z)
	}

	for _, p := range posts {
		link := base + "/post/" + url.PathEscape(p.Slug)
		channel.Items = append(channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: false, Value: p.ID},
			Description: Excerpt(p.Content, excerptLength),
			Category:    p.Category,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		})
	}

	body, err := xml.MarshalIndent(rssDocument{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Excerpt はHTMLからテキストのみを取り出し、空白を正規化してmaxRunes文字に切り詰める。
func Excerpt(rawHTML string, maxRunes int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var b strings.Builder

loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop
		case html.TextToken:
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// ブロック要素の境界で単語が連結しないよう区切る
			b.WriteByte(' ')
		}
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
