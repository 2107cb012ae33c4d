// Package cipher はセッショントークン用の認証付き暗号（AEAD）を提供します。
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrEncryptionFailed は暗号化処理そのものが失敗したことを表します。通常は発生しません。
	ErrEncryptionFailed = errors.New("cipher: encryption failed")
	// ErrAuthenticationFailed は改ざん・破損・長さ不足などで認証タグを検証できなかったことを表します。
	ErrAuthenticationFailed = errors.New("cipher: authentication failed")
)

// Cipher はバイト列の暗号化と復号を行います。
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Option は ChaCha20Poly1305 の生成オプションです。
type Option func(*ChaCha20Poly1305)

// WithFixedNonce は鍵素材のナンスを全メッセージで使い回すモードにします。
// 出力はナンスを含まない暗号文のみになります。旧形式のトークンとの互換用で、
// 同じ鍵でナンスを再利用するため新規の運用では使わないでください。
func WithFixedNonce() Option {
	return func(c *ChaCha20Poly1305) {
		c.fixedNonce = true
	}
}

// WithNonceSource はメッセージごとのナンスを読み出す乱数源を差し替えます。
func WithNonceSource(r io.Reader) Option {
	return func(c *ChaCha20Poly1305) {
		if r != nil {
			c.nonceSource = r
		}
	}
}

// ChaCha20Poly1305 は Cipher のデフォルト実装です。
//
// デフォルトではメッセージごとにランダムなナンスを生成し、
// nonce || ciphertext || tag の形式で出力します。
type ChaCha20Poly1305 struct {
	aead        stdcipher.AEAD
	nonce       [NonceSize]byte
	fixedNonce  bool
	nonceSource io.Reader
}

// NewChaCha20Poly1305 はプロセス共通の鍵素材から暗号器を作成します。
func NewChaCha20Poly1305(opts ...Option) (*ChaCha20Poly1305, error) {
	material, err := ProcessKeyMaterial()
	if err != nil {
		return nil, err
	}
	return NewChaCha20Poly1305WithKey(material, opts...)
}

// NewChaCha20Poly1305WithKey は指定した鍵素材から暗号器を作成します。
func NewChaCha20Poly1305WithKey(material KeyMaterial, opts ...Option) (*ChaCha20Poly1305, error) {
	aead, err := chacha20poly1305.New(material.Key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to init chacha20poly1305: %w", err)
	}

	c := &ChaCha20Poly1305{
		aead:        aead,
		nonce:       material.Nonce,
		nonceSource: rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt は平文を暗号化します。
func (c *ChaCha20Poly1305) Encrypt(plaintext []byte) ([]byte, error) {
	if c.fixedNonce {
		return c.aead.Seal(nil, c.nonce[:], plaintext, nil), nil
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(c.nonceSource, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return c.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt は暗号文を検証して復号します。
// 検証に失敗した場合は内容にかかわらず ErrAuthenticationFailed を返します。
func (c *ChaCha20Poly1305) Decrypt(ciphertext []byte) ([]byte, error) {
	nonce, sealed := c.nonce[:], ciphertext
	if !c.fixedNonce {
		if len(ciphertext) < NonceSize+c.aead.Overhead() {
			return nil, ErrAuthenticationFailed
		}
		nonce, sealed = ciphertext[:NonceSize], ciphertext[NonceSize:]
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Guarded は Cipher を排他制御付きで共有するためのラッパーです。
// ロックは Encrypt / Decrypt 1回分の間だけ保持されます。
type Guarded struct {
	mu    sync.Mutex
	inner Cipher
}

// NewGuarded は inner を排他制御で包みます。
func NewGuarded(inner Cipher) *Guarded {
	return &Guarded{inner: inner}
}

// Encrypt は排他制御下で暗号化します。
func (g *Guarded) Encrypt(plaintext []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Encrypt(plaintext)
}

// Decrypt は排他制御下で復号します。
func (g *Guarded) Decrypt(ciphertext []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Decrypt(ciphertext)
}
