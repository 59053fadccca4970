package qr

import (
	"encoding/base64"
	"errors"

	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generator renders ticket QR payloads as PNG images.
type Generator struct {
	size int
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = defaultSize
	}
	return &Generator{size: size}
}

func (g *Generator) PNG(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty qr payload")
	}
	return qrcode.Encode(payload, qrcode.Medium, g.size)
}

// DataURI embeds the PNG so confirmation pages can render it inline.
func (g *Generator) DataURI(payload string) (string, error) {
	png, err := g.PNG(payload)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
