package cipher

import (
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize は ChaCha20-Poly1305 の鍵長（256bit）です。
	KeySize = chacha20poly1305.KeySize
	// NonceSize は ChaCha20-Poly1305 のナンス長（96bit）です。
	NonceSize = chacha20poly1305.NonceSize
)

// KeyMaterial は暗号鍵とナンスの組です。
// 生成後に書き換えてはいけません。
type KeyMaterial struct {
	Key   [KeySize]byte
	Nonce [NonceSize]byte
}

var processKeyMaterial = sync.OnceValues(GenerateKeyMaterial)

// ProcessKeyMaterial はプロセス共通の鍵素材を返します。
// 初回呼び出し時に一度だけ生成され、以降は同じ値を返します。
// 鍵は永続化されないため、再起動前に発行されたトークンは復号できません。
func ProcessKeyMaterial() (KeyMaterial, error) {
	return processKeyMaterial()
}

// GenerateKeyMaterial は crypto/rand から新しい鍵素材を生成します。
func GenerateKeyMaterial() (KeyMaterial, error) {
	var m KeyMaterial
	if _, err := rand.Read(m.Key[:]); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate key: %w", err)
	}
	if _, err := rand.Read(m.Nonce[:]); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return m, nil
}
