package qrcode

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	MinSize     = 128
	MaxSize     = 1024
	DefaultSize = 512
)

// QRService renders join links for printed table cards.
type QRService struct {
	baseURL string // e.g. "https://guestdrop.app"
}

func NewQRService(baseURL string) *QRService {
	return &QRService{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// JoinURL is the link guests open to join an event.
func (s *QRService) JoinURL(slug string) string {
	return fmt.Sprintf("%s/j/%s", s.baseURL, slug)
}

// GenerateJoinQR returns a PNG QR code for the event's join link. Size is
// clamped to a printable range.
func (s *QRService) GenerateJoinQR(slug string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size < MinSize {
		size = MinSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	png, err := qrcode.Encode(s.JoinURL(slug), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code PNG: %w", err)
	}
	return png, nil
}
