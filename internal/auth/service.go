// Package auth は資格情報のハッシュ化、セッショントークンの発行・検証、
// サインアップ/サインイン/外部IdP連携のフローを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bloghub/internal/metrics"
	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/repository"
)

// 認証操作のメトリクスラベル
const (
	OperationSignUp    = "sign_up"
	OperationSignIn    = "sign_in"
	OperationFederated = "federated"
)

const (
	// handleSuffixDigits は外部IdP由来のusernameに付与する数字の桁数。
	handleSuffixDigits = 4
	// handleAttempts は数字サフィックスでusernameを生成する最大試行回数。
	handleAttempts = 5
	// generatedSecretLength は外部IdP連携アカウントに割り当てるランダムパスワードの長さ。
	generatedSecretLength = 16
	// defaultHandleBase は表示名から英数字が得られない場合のusername。
	defaultHandleBase = "user"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// OAuthProvider はサーバー側で認可コードフローを行うIdPのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを交換し、IdPで確認済みのプロフィールを返す。
	ExchangeCode(ctx context.Context, code string) (*FederatedProfile, error)
}

// TokenIssuer はセッショントークンの発行インターフェース。
type TokenIssuer interface {
	Issue(claims Claims) (string, time.Time, error)
}

// URLValidator は外部URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// FederatedProfile は外部IdPで確認済みのプロフィール。
type FederatedProfile struct {
	Name      string
	Email     string
	AvatarURL string
}

// Session はサインイン成功時の結果。
type Session struct {
	Account   *model.Account
	Token     string
	ExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	oauth    OAuthProvider
	urls     URLValidator
	metrics  metrics.MetricsCollector

	now          func() time.Time
	randomDigits func(n int) (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。oauthとmetricsはnilを許容する。
func NewService(
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	oauth OAuthProvider,
	urls URLValidator,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		accounts:     accounts,
		hasher:       hasher,
		tokens:       tokens,
		oauth:        oauth,
		urls:         urls,
		metrics:      collector,
		now:          time.Now,
		randomDigits: randomDigits,
	}
}

// OAuthEnabled はサーバー側のOAuthフローが利用可能かを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// SignUp はアカウントを作成する。トークンは発行しない。
func (s *Service) SignUp(ctx context.Context, username, email, password string) (*model.Account, error) {
	account, err := s.signUp(ctx, username, email, password)
	s.record(OperationSignUp, err)
	return account, err
}

func (s *Service) signUp(ctx context.Context, username, email, password string) (*model.Account, error) {
	if username == "" || email == "" || password == "" {
		return nil, model.NewValidationError("Please fill all fields.")
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateAccountError()
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		Password:       hashed,
		ProfilePicture: model.DefaultProfilePicture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateAccountError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created", slog.String("account_id", account.ID))

	account.Password = ""
	return account, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッショントークンを発行する。
// 未登録のメールアドレスとパスワード不一致は同一のエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.signIn(ctx, email, password)
	s.record(OperationSignIn, err)
	return session, err
}

func (s *Service) signIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, model.NewValidationError("All fields are required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account == nil {
		// 応答時間で登録有無を判別されないよう、未登録でも照合を1回行う
		s.hasher.Verify(password, s.dummyPasswordHash())
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, account.Password) {
		return nil, model.NewInvalidCredentialsError()
	}

	account.Password = ""
	return s.issueSession(account)
}

// FederatedSignIn は外部IdPで確認済みのプロフィールでサインインする。
// メールアドレスが未登録の場合はアカウントを作成する。何度呼んでも同一アカウントに収束する。
func (s *Service) FederatedSignIn(ctx context.Context, profile FederatedProfile) (*Session, error) {
	session, err := s.federatedSignIn(ctx, profile)
	s.record(OperationFederated, err)
	return session, err
}

func (s *Service) federatedSignIn(ctx context.Context, profile FederatedProfile) (*Session, error) {
	if profile.Email == "" {
		return nil, model.NewValidationError("Please fill all fields.")
	}

	account, err := s.findAccountByEmail(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		slog.Info("federated sign-in", slog.String("account_id", account.ID))
		return s.issueSession(account)
	}

	avatar := model.DefaultProfilePicture
	if profile.AvatarURL != "" {
		if err := s.urls.ValidateURL(profile.AvatarURL); err != nil {
			slog.Warn("federated avatar rejected, using default",
				slog.String("error", err.Error()),
			)
		} else {
			avatar = profile.AvatarURL
		}
	}

	account, err = s.provisionFederatedAccount(ctx, profile, avatar)
	if err != nil {
		return nil, err
	}
	return s.issueSession(account)
}

// provisionFederatedAccount は外部IdP連携用のアカウントを作成する。
// 同一メールアドレスの同時作成で一意制約に違反した場合は既存アカウントを返す。
func (s *Service) provisionFederatedAccount(ctx context.Context, profile FederatedProfile, avatar string) (*model.Account, error) {
	secret, err := generateSecret(generatedSecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	hashed, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	username, err := s.generateHandle(ctx, profile.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          profile.Email,
		Password:       hashed,
		ProfilePicture: avatar,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.accounts.Create(ctx, account)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, findErr := s.findAccountByEmail(ctx, profile.Email)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
		// メールアドレスではなくusernameが競合した
		account.Username = fallbackHandle(handleBase(profile.Name))
		err = s.accounts.Create(ctx, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create federated account: %w", err)
	}

	slog.Info("federated account created",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)

	account.Password = ""
	return account, nil
}

// generateHandle は表示名から未使用のusernameを生成する。
// 数字サフィックスで規定回数衝突した場合はUUID由来のサフィックスを使う。
func (s *Service) generateHandle(ctx context.Context, name string) (string, error) {
	base := handleBase(name)

	for i := 0; i < handleAttempts; i++ {
		digits, err := s.randomDigits(handleSuffixDigits)
		if err != nil {
			return "", fmt.Errorf("failed to generate handle suffix: %w", err)
		}
		candidate := base + digits

		exists, err := s.accounts.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return fallbackHandle(base), nil
}

// HandleGoogleCallback はOAuthコールバックの認可コードを処理し、セッションを発行する。
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*Session, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth provider is not configured")
	}
	if code == "" {
		return nil, model.NewValidationError("Authorization code is required")
	}

	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.record(OperationFederated, err)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	if profile == nil {
		return nil, errors.New("oauth provider returned no profile")
	}

	return s.FederatedSignIn(ctx, *profile)
}

func (s *Service) findAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account != nil {
		account.Password = ""
	}
	return account, nil
}

func (s *Service) issueSession(account *model.Account) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(Claims{AccountID: account.ID, IsAdmin: account.IsAdmin})
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

// dummyPasswordHash は未登録アカウント照合用のハッシュを初回のみ生成して返す。
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hashed, err := s.hasher.Hash("bloghub-timing-equalizer")
		if err != nil {
			slog.Error("failed to prepare dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hashed
	})
	return s.dummyHash
}

func (s *Service) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	s.metrics.RecordAuthAttempt(operation, result)
}

// handleBase は表示名を小文字化し、英数字以外を取り除く。
func handleBase(name string) string {
	base := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "")
	if base == "" {
		return defaultHandleBase
	}
	return base
}

// fallbackHandle はUUID由来のサフィックスを持つusernameを返す。
func fallbackHandle(base string) string {
	return base + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// randomDigits は暗号学的乱数でn桁の数字列を生成する。
func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateSecret は外部IdP連携アカウント用のランダムなパスワードを生成する。
// 利用者には開示しない。
func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[idx.Int64()]
	}
	return string(b), nil
}
