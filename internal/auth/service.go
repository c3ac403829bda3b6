// Package auth はパスワード・OAuthによる認証とアクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/coursehub/internal/metrics"
	"github.com/hitoshi/coursehub/internal/model"
	"github.com/hitoshi/coursehub/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	FirstName      string
	LastName       string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// TokenIssuer は認証主体からアクセストークンを発行する。
type TokenIssuer interface {
	Issue(p model.Principal) (string, time.Time, error)
}

// RegisterInput はローカルユーザー登録の入力。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult はログイン成功時に返すトークンとユーザー。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// ServiceDeps は認証サービスの依存関係。
// OAuthがnilの場合、OAuthログインは無効になる。
type ServiceDeps struct {
	Users   repository.UserRepository
	Roles   repository.RoleRepository
	Tx      repository.TxRunner
	Hasher  PasswordHasher
	Tokens  TokenIssuer
	OAuth   OAuthProvider
	Metrics metrics.Recorder
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	roles   repository.RoleRepository
	tx      repository.TxRunner
	hasher  PasswordHasher
	tokens  TokenIssuer
	oauth   OAuthProvider
	metrics metrics.Recorder
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(deps ServiceDeps) *Service {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Service{
		users:   deps.Users,
		roles:   deps.Roles,
		tx:      deps.Tx,
		hasher:  deps.Hasher,
		tokens:  deps.Tokens,
		oauth:   deps.OAuth,
		metrics: rec,
		now:     time.Now,
	}
}

// normalizeEmail はメールアドレスの前後空白を除去し小文字化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はローカルユーザーを作成し、STUDENTロールを付与する。
// ユーザー作成とロール付与は同一トランザクションで行う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Enabled:      true,
		Locked:       false,
		Provider:     model.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return model.NewEmailInUseError(email)
		}
		return s.createWithDefaultRole(ctx, user)
	})
	if err != nil {
		s.metrics.RecordAuthAttempt("register", "rejected")
		return nil, err
	}

	s.metrics.RecordAuthAttempt("register", "success")
	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("provider", user.Provider),
	)
	return user, nil
}

// createWithDefaultRole はユーザーを作成しSTUDENTロールを付与する。
// トランザクション内で呼び出すこと。
func (s *Service) createWithDefaultRole(ctx context.Context, user *model.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewEmailInUseError(user.Email)
		}
		return err
	}

	role, err := s.roles.FindByName(ctx, model.RoleStudent)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("default role %s is not seeded", model.RoleStudent)
	}
	if err := s.users.AddRole(ctx, user.ID, role.ID); err != nil {
		return err
	}
	user.Roles = []string{role.Name}
	return nil
}

// Login はメールアドレスとパスワードを検証してトークンを発行する。
// ユーザー不在、パスワード不一致、無効化、ロック中はいずれも同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	// ユーザーが存在しない場合もダミーのハッシュと照合する
	hash := s.timingHash()
	if user != nil {
		hash = user.PasswordHash
	}
	matched := s.hasher.Compare(hash, password)
	if user == nil || !matched || !user.Enabled || user.Locked {
		s.metrics.RecordAuthAttempt("password", "failure")
		return nil, model.NewBadCredentialsError()
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuthAttempt("password", "success")
	return result, nil
}

// timingHash は存在しないユーザーとの照合に使うハッシュを返す。初回呼び出し時に生成する。
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// OAuthEnabled はOAuthログインが有効かを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleOAuthCallback はOAuthコールバックを処理し、トークンを発行する。
// メールアドレスが一致するユーザーがいればプロバイダー情報と氏名を更新し、
// いなければランダムなパスワードでユーザーを作成してSTUDENTロールを付与する。
func (s *Service) HandleOAuthCallback(ctx context.Context, code string) (*LoginResult, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordAuthAttempt("oauth", "failure")
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewOAuthFailedError("could not verify identity with provider")
	}

	email := normalizeEmail(info.Email)
	if email == "" {
		s.metrics.RecordAuthAttempt("oauth", "failure")
		return nil, model.NewOAuthFailedError("email not found from OAuth2 provider")
	}

	var user *model.User
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}

		providerID := info.ProviderUserID
		now := s.now()

		if existing != nil {
			existing.Provider = info.Provider
			existing.ProviderID = &providerID
			if info.FirstName != "" {
				existing.FirstName = info.FirstName
			}
			if info.LastName != "" {
				existing.LastName = info.LastName
			}
			existing.UpdatedAt = now
			if err := s.users.UpdateProvider(ctx, existing); err != nil {
				return err
			}
			user = existing
			return nil
		}

		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			return err
		}
		user = &model.User{
			Email:        email,
			PasswordHash: hash,
			FirstName:    info.FirstName,
			LastName:     info.LastName,
			Enabled:      true,
			Provider:     info.Provider,
			ProviderID:   &providerID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.createWithDefaultRole(ctx, user); err != nil {
			return err
		}
		slog.Info("user registered",
			slog.Int64("user_id", user.ID),
			slog.String("provider", user.Provider),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !user.Enabled || user.Locked {
		s.metrics.RecordAuthAttempt("oauth", "failure")
		return nil, model.NewBadCredentialsError()
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuthAttempt("oauth", "success")
	return result, nil
}

func (s *Service) issue(user *model.User) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(model.Principal{Subject: user.Email, Roles: user.Roles})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
