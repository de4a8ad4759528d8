package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/naradmuni/internal/model"
)

// SessionTTL はセッショントークンの有効期間。発行時に exp = now + SessionTTL で固定する。
const SessionTTL = 12 * time.Hour

// セッショントークン検証の失敗理由。
// 呼び出し側はいずれも「未認証」として扱い、理由をクライアントに返さない。
var (
	ErrNoSigningKey      = errors.New("session signing key is not configured")
	ErrTokenMissing      = errors.New("session token is missing")
	ErrTokenMalformed    = errors.New("session token is malformed")
	ErrSignatureMismatch = errors.New("session token signature mismatch")
	ErrTokenExpired      = errors.New("session token expired")
)

// sessionClaims はセッショントークンのペイロード。
// 署名はクレーム全体を対象とする。
type sessionClaims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Validate はjwt.ClaimsValidatorを実装し、必須クレームの欠落を拒否する。
func (c sessionClaims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("subject is required")
	}
	if c.ExpiresAt == nil {
		return errors.New("exp is required")
	}
	return nil
}

// strictPayload は署名検証後のペイロードを未知フィールド禁止で再デコードするための型。
type strictPayload struct {
	Sub     string  `json:"sub"`
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
	Iat     int64   `json:"iat"`
	Exp     int64   `json:"exp"`
}

// SessionCodec はHS256で署名された有効期限付きセッショントークンを発行・検証する。
// 署名鍵はプロセス起動時に一度だけ設定され、以後は読み取り専用。
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewSessionCodec はSessionCodecを生成する。
// secretが空の場合もインスタンスは生成し、Issueが ErrNoSigningKey を返す。
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	c := &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c
}

// Configured は署名鍵が設定されているかを返す。
func (c *SessionCodec) Configured() bool {
	return len(c.secret) > 0
}

// TTL はトークンの有効期間を返す。
func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Issue はPrincipalからセッショントークンを発行する。
func (c *SessionCodec) Issue(p model.Principal) (string, error) {
	if !c.Configured() {
		return "", ErrNoSigningKey
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", fmt.Errorf("principal email is required")
	}

	now := c.now()
	claims := sessionClaims{
		Name:    p.Name,
		Picture: p.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Validate はトークンの署名と有効期限を検証し、Principalを復元する。
func (c *SessionCodec) Validate(token string) (*model.Principal, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	if !c.Configured() {
		return nil, ErrNoSigningKey
	}

	var claims sessionClaims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}

	if err := c.checkStrictPayload(token); err != nil {
		return nil, err
	}

	return &model.Principal{
		Email:   claims.Subject,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// checkStrictPayload は未知のクレームや型の異なるクレームを含むトークンを拒否する。
func (c *SessionCodec) checkStrictPayload(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrTokenMalformed
	}
	raw, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return ErrTokenMalformed
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var payload strictPayload
	if err := dec.Decode(&payload); err != nil {
		return ErrTokenMalformed
	}
	return nil
}

// classifyJWTError はjwtライブラリのエラーを失敗理由のセンチネルに変換する。
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureMismatch
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
