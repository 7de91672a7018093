package post

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/bloghub/internal/model"
)

func TestFeed_ParsesAsRSS(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var gotOpts model.ListOptions
	repo := &mockPostRepo{
		listFn: func(_ context.Context, _ model.PostFilter, opts model.ListOptions) ([]*model.Post, error) {
			gotOpts = opts
			return []*model.Post{
				{
					ID:        "p1",
					Title:     "Tom & Jerry",
					Slug:      "tom-jerry",
					Content:   "<h1>Intro</h1><p>Cats &amp; mice<br>forever</p>",
					Category:  "cartoons",
					CreatedAt: created,
					UpdatedAt: created.Add(time.Hour),
				},
				{
					ID:        "p2",
					Title:     "Second",
					Slug:      "second",
					Content:   "<p>plain</p>",
					Category:  "uncategorized",
					CreatedAt: created.Add(-24 * time.Hour),
					UpdatedAt: created.Add(-24 * time.Hour),
				},
			}, nil
		},
	}
	svc := newTestService(repo, stubURLGuard{})

	body, err := svc.Feed(context.Background(), "https://blog.example.com/", 0)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if gotOpts.Limit != DefaultFeedLimit || gotOpts.Ascending {
		t.Errorf("opts = %+v, want newest %d", gotOpts, DefaultFeedLimit)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		t.Fatalf("ParseString() error = %v\n%s", err, body)
	}
	if feed.FeedType != "rss" {
		t.Errorf("FeedType = %q, want rss", feed.FeedType)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}

	item := feed.Items[0]
	if item.Title != "Tom & Jerry" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.Link != "https://blog.example.com/post/tom-jerry" {
		t.Errorf("Link = %q", item.Link)
	}
	if item.GUID != "p1" {
		t.Errorf("GUID = %q", item.GUID)
	}
	if item.Description != "Intro Cats & mice forever" {
		t.Errorf("Description = %q", item.Description)
	}
	if len(item.Categories) != 1 || item.Categories[0] != "cartoons" {
		t.Errorf("Categories = %v", item.Categories)
	}
	if item.PublishedParsed == nil || !item.PublishedParsed.Equal(created) {
		t.Errorf("Published = %v, want %v", item.PublishedParsed, created)
	}
}

func TestFeed_LimitIsCapped(t *testing.T) {
	var gotLimit int
	repo := &mockPostRepo{
		listFn: func(_ context.Context, _ model.PostFilter, opts model.ListOptions) ([]*model.Post, error) {
			gotLimit = opts.Limit
			return nil, nil
		},
	}
	svc := newTestService(repo, stubURLGuard{})

	body, err := svc.Feed(context.Background(), "https://blog.example.com", 1000)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if gotLimit != MaxFeedLimit {
		t.Errorf("limit = %d, want %d", gotLimit, MaxFeedLimit)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if len(feed.Items) != 0 {
		t.Errorf("items = %d, want 0", len(feed.Items))
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		html string
		max  int
		want string
	}{
		{"strips tags", "<p>Hello <strong>world</strong></p>", 100, "Hello world"},
		{"block boundaries", "<p>one</p><p>two</p>", 100, "one two"},
		{"entities", "<p>a &lt; b</p>", 100, "a < b"},
		{"truncates runes", "<p>あいうえおかきくけこ</p>", 5, "あいうえお..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.html, tt.max); got != tt.want {
				t.Errorf("Excerpt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFeed_EscapesMarkupInTitles(t *testing.T) {
	repo := &mockPostRepo{
		listFn: func(_ context.Context, _ model.PostFilter, _ model.ListOptions) ([]*model.Post, error) {
			return []*model.Post{{ID: "p1", Title: "<b>bold</b>", Slug: "bold", Content: "x"}}, nil
		},
	}
	svc := newTestService(repo, stubURLGuard{})

	body, err := svc.Feed(context.Background(), "https://blog.example.com", 5)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if strings.Contains(string(body), "<b>") {
		t.Errorf("title markup must be escaped:\n%s", body)
	}
}
