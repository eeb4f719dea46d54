// Package secret шифрует ссылки на токены провайдера перед сохранением в БД.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "sb1:"
)

var (
	// ErrBadKey возвращается, если ключ не декодируется в 32 байта.
	ErrBadKey = errors.New("seal key must be 32 bytes base64")
	// ErrOpen возвращается, если запечатанное значение повреждено или подписано другим ключом.
	ErrOpen = errors.New("cannot open sealed value")
)

// Sealer запечатывает строки ключом secretbox. Нулевой Sealer (без ключа)
// возвращает значения без изменений.
type Sealer struct {
	key *[keySize]byte
}

// NewSealer создаёт Sealer из base64-ключа. Пустой ключ отключает шифрование.
func NewSealer(encodedKey string) (*Sealer, error) {
	const op = "secret.NewSealer"
	if encodedKey == "" {
		return &Sealer{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(raw) != keySize {
		return nil, fmt.Errorf("%s: %w", op, ErrBadKey)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &Sealer{key: &key}, nil
}

// Enabled сообщает, задан ли ключ.
func (s *Sealer) Enabled() bool {
	return s != nil && s.key != nil
}

// Seal шифрует значение. Результат имеет вид "sb1:<base64(nonce|box)>".
func (s *Sealer) Seal(plain string) (string, error) {
	const op = "secret.Seal"
	if !s.Enabled() {
		return plain, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return prefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open расшифровывает значение, полученное из Seal. Значения без префикса
// возвращаются как есть.
func (s *Sealer) Open(sealed string) (string, error) {
	const op = "secret.Open"
	if len(sealed) < len(prefix) || sealed[:len(prefix)] != prefix {
		return sealed, nil
	}
	if !s.Enabled() {
		return "", fmt.Errorf("%s: %w", op, ErrOpen)
	}
	raw, err := base64.StdEncoding.DecodeString(sealed[len(prefix):])
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%s: %w", op, ErrOpen)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.key)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrOpen)
	}
	return string(plain), nil
}
