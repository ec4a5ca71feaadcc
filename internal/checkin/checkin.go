// Package checkin issues the QR pass shown at the session door and reads it
// back when scanned.
package checkin

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("invalid check-in pass")

// Pass is the payload sealed into the QR code.
type Pass struct {
	BookingID string    `json:"bid"`
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	Seat      *int      `json:"seat,omitempty"`
	IssuedAt  time.Time `json:"iat"`
}

type QRGenerator struct {
	aead cipher.AEAD
}

func NewQRGenerator(secret string) (*QRGenerator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{aead: aead}, nil
}

func PassFor(b *models.Booking, now time.Time) Pass {
	return Pass{
		BookingID: b.ID,
		SessionID: b.SessionID,
		UserID:    b.UserID,
		Seat:      b.SeatNumber,
		IssuedAt:  now.UTC(),
	}
}

// Seal encrypts the pass into a URL-safe token.
func (q *QRGenerator) Seal(p Pass) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := q.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a scanned token. Tampered or foreign tokens fail with
// ErrInvalidPass.
func (q *QRGenerator) Open(token string) (*Pass, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	n := q.aead.NonceSize()
	if len(raw) < n {
		return nil, fmt.Errorf("%w: too short", ErrInvalidPass)
	}
	data, err := q.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}

	var p Pass
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return &p, nil
}

// GenerateEncryptedQR returns a PNG QR code holding the sealed pass.
func (q *QRGenerator) GenerateEncryptedQR(p Pass) ([]byte, error) {
	token, err := q.Seal(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}
