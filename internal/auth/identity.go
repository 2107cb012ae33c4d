package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrIdentityNotFound はユーザー名とパスワードに一致するユーザーがいないことを表します。
	ErrIdentityNotFound = errors.New("auth: identity not found")
	// ErrInvalidIdentity は ID またはユーザー名が空、または UTF-8 として不正なユーザー情報を表します。
	ErrInvalidIdentity = errors.New("auth: identity requires id and username")
)

// UserIdentity はログイン済みユーザーを表します。生成後は変更できません。
type UserIdentity struct {
	id       string
	username string
}

// identityRecord は UserIdentity の正規の JSON 表現です。
type identityRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewUserIdentity は UserIdentity を作成します。
func NewUserIdentity(id, username string) UserIdentity {
	return UserIdentity{id: id, username: username}
}

// ID はユーザーIDを返します。
func (u UserIdentity) ID() string {
	return u.id
}

// Username はユーザー名を返します。
func (u UserIdentity) Username() string {
	return u.username
}

// Valid は ID とユーザー名の両方が設定され、どちらも正しい UTF-8 であるかを返します。
func (u UserIdentity) Valid() bool {
	return u.id != "" && u.username != "" &&
		utf8.ValidString(u.id) && utf8.ValidString(u.username)
}

// MarshalJSON は {"id":..., "username":...} 形式で出力します。
func (u UserIdentity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityRecord{ID: u.id, Username: u.username})
}

// CredentialValidator はユーザー名とパスワードを検証してユーザーを特定します。
// 一致しない場合は ErrIdentityNotFound を返します。
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, username, password string) (UserIdentity, error)
}

// DemoValidator はデモ用の検証器です。
// ユーザー名とパスワードが空でなければ固定のユーザーとしてログインさせます。
type DemoValidator struct{}

// ValidateCredentials はデモ用の検証を行います。
func (DemoValidator) ValidateCredentials(_ context.Context, username, password string) (UserIdentity, error) {
	if username == "" || password == "" {
		return UserIdentity{}, ErrIdentityNotFound
	}
	return NewUserIdentity("123456", "Dvorak"), nil
}

// StaticValidator は設定された1ユーザーを bcrypt ハッシュで検証します。
type StaticValidator struct {
	UserID       string
	Username     string
	PasswordHash string
}

// ValidateCredentials はユーザー名の一致とパスワードハッシュを検証します。
func (v StaticValidator) ValidateCredentials(_ context.Context, username, password string) (UserIdentity, error) {
	if v.Username == "" || v.PasswordHash == "" {
		return UserIdentity{}, errors.New("static validator is not configured")
	}
	// ユーザー名が違ってもハッシュ比較は行い、応答時間の差を小さくする
	matched := bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(password)) == nil
	if !matched || strings.TrimSpace(username) != v.Username {
		return UserIdentity{}, ErrIdentityNotFound
	}
	return NewUserIdentity(v.UserID, v.Username), nil
}
