package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/yourusername/dvorak-admin/internal/cipher"
)

var (
	// ErrTokenMalformed はトークンが空、または base64 として解釈できないことを表します。
	ErrTokenMalformed = errors.New("token: malformed")
	// ErrTokenSerialize はユーザー情報をトークンに変換できないことを表します。
	ErrTokenSerialize = errors.New("token: cannot serialize identity")
	// ErrTokenCipher は暗号化または復号に失敗したことを表します。
	ErrTokenCipher = errors.New("token: cipher failure")
	// ErrTokenDeserialize は復号結果がユーザー情報として解釈できないことを表します。
	ErrTokenDeserialize = errors.New("token: invalid identity record")
)

// TokenError はトークン処理の失敗段階（Kind）と原因（Err）を保持します。
// errors.Is は Kind と Err のどちらに対しても成立します。
type TokenError struct {
	Kind error
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// EncodeToken はユーザー情報を JSON 化して暗号化し、base64 文字列にします。
func EncodeToken(identity UserIdentity, c cipher.Cipher) (string, error) {
	if !identity.Valid() {
		return "", &TokenError{Kind: ErrTokenSerialize, Err: ErrInvalidIdentity}
	}

	payload, err := json.Marshal(identityRecord{ID: identity.id, Username: identity.username})
	if err != nil {
		return "", &TokenError{Kind: ErrTokenSerialize, Err: err}
	}

	sealed, err := c.Encrypt(payload)
	if err != nil {
		return "", &TokenError{Kind: ErrTokenCipher, Err: err}
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecodeToken は EncodeToken の逆変換を行います。
// いずれかの段階で失敗した時点で処理を打ち切り、部分的な結果は返しません。
func DecodeToken(token string, c cipher.Cipher) (UserIdentity, error) {
	if token == "" {
		return UserIdentity{}, &TokenError{Kind: ErrTokenMalformed}
	}

	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return UserIdentity{}, &TokenError{Kind: ErrTokenMalformed, Err: err}
	}

	payload, err := c.Decrypt(sealed)
	if err != nil {
		return UserIdentity{}, &TokenError{Kind: ErrTokenCipher, Err: err}
	}

	var record identityRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return UserIdentity{}, &TokenError{Kind: ErrTokenDeserialize, Err: err}
	}
	identity := NewUserIdentity(record.ID, record.Username)
	if !identity.Valid() {
		return UserIdentity{}, &TokenError{Kind: ErrTokenDeserialize, Err: ErrInvalidIdentity}
	}
	return identity, nil
}
