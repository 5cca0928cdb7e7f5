// Package qrcode генерирует PNG с QR-кодом для конфигурации подписки.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent возвращается, если содержимое пустое или состоит из пробелов.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrFailedToGenerate возвращается, если библиотека не смогла построить код.
	ErrFailedToGenerate = errors.New("failed to generate QR code")
)

// DefaultSize размер картинки в пикселях по умолчанию.
const DefaultSize = 300

// Generate строит PNG с QR-кодом для content.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}
