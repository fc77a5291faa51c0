package token

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier 校验请求携带的 bearer token。
type Verifier struct {
	plain  []byte
	hashed []byte
	jwt    *JWTManager
}

// NewVerifier 组合静态 token、bcrypt 哈希与 JWT 三种校验方式，空值表示不启用对应方式。
func NewVerifier(plain, bcryptHash, jwtSecret string) *Verifier {
	v := &Verifier{}
	if plain != "" {
		v.plain = []byte(plain)
	}
	if bcryptHash != "" {
		v.hashed = []byte(bcryptHash)
	}
	if jwtSecret != "" {
		v.jwt = NewJWTManager(jwtSecret)
	}
	return v
}

// Verify 返回 token 是否有效。
func (v *Verifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	if v.plain != nil && subtle.ConstantTimeCompare([]byte(token), v.plain) == 1 {
		return true
	}
	if v.hashed != nil && bcrypt.CompareHashAndPassword(v.hashed, []byte(token)) == nil {
		return true
	}
	if v.jwt != nil {
		if _, err := v.jwt.VerifyToken(token); err == nil {
			return true
		}
	}
	return false
}

// HashToken 生成 token 的 bcrypt 哈希，供 auth.bearer_token_bcrypt 使用。
func HashToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成 bcrypt 哈希失败: %w", err)
	}
	return string(hashed), nil
}
