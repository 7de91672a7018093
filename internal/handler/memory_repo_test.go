package handler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/repository"
)

// インメモリのリポジトリ実装。ルーター経由のシナリオテストで実サービスと組み合わせて使う。

type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts []*model.Account
}

func (r *memoryAccountRepo) find(pred func(*model.Account) bool) *model.Account {
	for _, a := range r.accounts {
		if pred(a) {
			return a
		}
	}
	return nil
}

func (r *memoryAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(func(a *model.Account) bool { return a.ID == id })
	if a == nil {
		return nil, nil
	}
	c := *a
	c.Password = ""
	return &c, nil
}

func (r *memoryAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(func(a *model.Account) bool { return a.Email == email })
	if a == nil {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *memoryAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(a *model.Account) bool { return a.Username == username }) != nil, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(func(a *model.Account) bool { return a.Email == account.Email || a.Username == account.Username }) != nil {
		return repository.ErrDuplicate
	}
	c := *account
	r.accounts = append(r.accounts, &c)
	return nil
}

func (r *memoryAccountRepo) Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(func(a *model.Account) bool { return a.ID == id })
	if a == nil {
		return nil, nil
	}
	if update.Username != nil {
		a.Username = *update.Username
	}
	if update.Email != nil {
		a.Email = *update.Email
	}
	if update.Password != nil {
		a.Password = *update.Password
	}
	if update.ProfilePicture != nil {
		a.ProfilePicture = *update.ProfilePicture
	}
	a.UpdatedAt = time.Now()
	c := *a
	c.Password = ""
	return &c, nil
}

func (r *memoryAccountRepo) SetAdminByEmail(ctx context.Context, email string, isAdmin bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(func(a *model.Account) bool { return a.Email == email })
	if a == nil {
		return false, nil
	}
	a.IsAdmin = isAdmin
	return true, nil
}

func (r *memoryAccountRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.accounts {
		if a.ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryAccountRepo) List(ctx context.Context, opts model.ListOptions) ([]*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		c := *a
		c.Password = ""
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if opts.Ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, opts), nil
}

func (r *memoryAccountRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts), nil
}

func (r *memoryAccountRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.accounts {
		if !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memoryPostRepo struct {
	mu    sync.Mutex
	posts []*model.Post
}

func (r *memoryPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == id {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryPostRepo) Create(ctx context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == post.Slug {
			return repository.ErrDuplicate
		}
	}
	c := *post
	r.posts = append(r.posts, &c)
	return nil
}

func (r *memoryPostRepo) Update(ctx context.Context, id string, update model.PostUpdate) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID != id {
			continue
		}
		if update.Title != "" {
			p.Title = update.Title
		}
		if update.Content != "" {
			p.Content = update.Content
		}
		if update.Category != "" {
			p.Category = update.Category
		}
		if update.Image != "" {
			p.Image = update.Image
		}
		p.UpdatedAt = time.Now()
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *memoryPostRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.posts {
		if p.ID == id {
			r.posts = append(r.posts[:i], r.posts[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryPostRepo) List(ctx context.Context, filter model.PostFilter, opts model.ListOptions) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(filter.SearchTerm)
	var out []*model.Post
	for _, p := range r.posts {
		if filter.UserID != "" && p.UserID != filter.UserID ||
			filter.Category != "" && p.Category != filter.Category ||
			filter.Slug != "" && p.Slug != filter.Slug ||
			filter.PostID != "" && p.ID != filter.PostID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Title), term) && !strings.Contains(strings.ToLower(p.Content), term) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if opts.Ascending {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return page(out, opts), nil
}

func (r *memoryPostRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts), nil
}

func (r *memoryPostRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memoryCommentRepo struct {
	mu       sync.Mutex
	comments []*model.Comment
}

func cloneComment(c *model.Comment) *model.Comment {
	out := *c
	out.Likes = append([]string{}, c.Likes...)
	return &out
}

func (r *memoryCommentRepo) find(id string) *model.Comment {
	for _, c := range r.comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *memoryCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.find(id); c != nil {
		return cloneComment(c), nil
	}
	return nil, nil
}

func (r *memoryCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, cloneComment(comment))
	return nil
}

func (r *memoryCommentRepo) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Comment
	for i := len(r.comments) - 1; i >= 0; i-- {
		if r.comments[i].PostID == postID {
			out = append(out, cloneComment(r.comments[i]))
		}
	}
	return out, nil
}

func (r *memoryCommentRepo) ToggleLike(ctx context.Context, commentID, accountID string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(commentID)
	if c == nil {
		return nil, nil
	}
	liked := false
	for i, id := range c.Likes {
		if id == accountID {
			c.Likes = append(c.Likes[:i], c.Likes[i+1:]...)
			liked = true
			break
		}
	}
	if !liked {
		c.Likes = append(c.Likes, accountID)
	}
	c.NumberOfLikes = len(c.Likes)
	return cloneComment(c), nil
}

func (r *memoryCommentRepo) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(id)
	if c == nil {
		return nil, nil
	}
	c.Content = content
	c.UpdatedAt = time.Now()
	return cloneComment(c), nil
}

func (r *memoryCommentRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.comments {
		if c.ID == id {
			r.comments = append(r.comments[:i], r.comments[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryCommentRepo) List(ctx context.Context, opts model.ListOptions) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Comment, 0, len(r.comments))
	for _, c := range r.comments {
		out = append(out, cloneComment(c))
	}
	if !opts.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return page(out, opts), nil
}

func (r *memoryCommentRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments), nil
}

func (r *memoryCommentRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.comments {
		if !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, opts model.ListOptions) []T {
	if opts.StartIndex >= len(items) {
		return nil
	}
	items = items[opts.StartIndex:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// compile-time interface checks
var (
	_ repository.AccountRepository = (*memoryAccountRepo)(nil)
	_ repository.PostRepository    = (*memoryPostRepo)(nil)
	_ repository.CommentRepository = (*memoryCommentRepo)(nil)
)
