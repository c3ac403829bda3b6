package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/coursehub/internal/model"
)

// ErrInvalidToken はトークンが検証できないことを表す。
// 署名不正、形式不正、期限切れを区別しない。
var ErrInvalidToken = errors.New("invalid token")

// Claims はアクセストークンのクレーム。
// subにメールアドレス、authにロール名の一覧を格納する。
type Claims struct {
	Auth []string `json:"auth"`
	jwt.RegisteredClaims
}

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Expiration time.Duration
}

// TokenService はHS256署名のアクセストークンを発行・検証する。
// 検証はデータベースに問い合わせない。
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config, now: time.Now}
}

// Issue は認証主体からトークンを発行し、トークン文字列と有効期限を返す。
func (s *TokenService) Issue(p model.Principal) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.Expiration)

	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := Claims{
		Auth: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンを検証して認証主体を返す。
// 検証に失敗した場合は常にErrInvalidTokenを返す。
func (s *TokenService) Verify(tokenString string) (model.Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return model.Principal{}, ErrInvalidToken
	}

	return model.Principal{Subject: claims.Subject, Roles: claims.Auth}, nil
}
