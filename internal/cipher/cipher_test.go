package cipher

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T, opts ...Option) *ChaCha20Poly1305 {
	t.Helper()
	material, err := GenerateKeyMaterial()
	require.NoError(t, err)
	c, err := NewChaCha20Poly1305WithKey(material, opts...)
	require.NoError(t, err)
	return c
}

func TestProcessKeyMaterialIsStable(t *testing.T) {
	first, err := ProcessKeyMaterial()
	require.NoError(t, err)
	second, err := ProcessKeyMaterial()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, [KeySize]byte{}, first.Key)
}

func TestNewChaCha20Poly1305UsesProcessKey(t *testing.T) {
	a, err := NewChaCha20Poly1305()
	require.NoError(t, err)
	b, err := NewChaCha20Poly1305()
	require.NoError(t, err)

	sealed, err := a.Encrypt([]byte("shared"))
	require.NoError(t, err)
	opened, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), opened)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range [][]byte{
		[]byte(`{"id":"1","username":"a"}`),
		[]byte(""),
		bytes.Repeat([]byte{0xff}, 1024),
	} {
		sealed, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.Len(t, sealed, NonceSize+len(plaintext)+16)

		opened, err := c.Decrypt(sealed)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, opened))
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
	assert.NotEqual(t, a, b)
}

func TestDecryptDetectsTampering(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Encrypt([]byte(`{"id":"1","username":"a"}`))
	require.NoError(t, err)

	for i := range sealed {
		tampered := bytes.Clone(sealed)
		tampered[i] ^= 0x01

		_, err := c.Decrypt(tampered)
		require.ErrorIs(t, err, ErrAuthenticationFailed, "byte %d", i)
	}
}

func TestDecryptRejectsShortInput(t *testing.T) {
	c := newTestCipher(t)

	for _, input := range [][]byte{nil, {}, make([]byte, NonceSize), make([]byte, NonceSize+15)} {
		_, err := c.Decrypt(input)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	}
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	sealed, err := newTestCipher(t).Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestCipher(t).Decrypt(sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestFixedNonceMode(t *testing.T) {
	material, err := GenerateKeyMaterial()
	require.NoError(t, err)
	c, err := NewChaCha20Poly1305WithKey(material, WithFixedNonce())
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, len("payload")+16)

	opened, err := c.Decrypt(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), opened)

	a[0] ^= 0x80
	_, err = c.Decrypt(a)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// ランダムナンス形式とは互換性がない
	random, err := NewChaCha20Poly1305WithKey(material)
	require.NoError(t, err)
	sealed, err := random.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, err = c.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestEncryptFailsWithoutEntropy(t *testing.T) {
	c := newTestCipher(t, WithNonceSource(failingReader{}))

	_, err := c.Encrypt([]byte("payload"))
	assert.ErrorIs(t, err, ErrEncryptionFailed)
}

func TestGuardedConcurrentUse(t *testing.T) {
	g := NewGuarded(newTestCipher(t))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plaintext := []byte{byte(i), byte(i >> 8)}
			sealed, err := g.Encrypt(plaintext)
			if err != nil {
				errs <- err
				return
			}
			opened, err := g.Decrypt(sealed)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(plaintext, opened) {
				errs <- errors.New("round trip mismatch")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
