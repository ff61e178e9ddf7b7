// Package qrcode turns component storage keys into scannable PNG artifacts and back.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	goqr "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Config 二维码配置
type Config struct {
	Level         string `mapstructure:"level"` // low/medium/high/highest
	Size          int    `mapstructure:"size"`
	DisableBorder bool   `mapstructure:"disable_border"`
	MaxPayload    int    `mapstructure:"max_payload"`
}

// DefaultConfig matches a medium error-correction tag with the standard quiet zone.
func DefaultConfig() Config {
	return Config{Level: "medium", Size: 256, MaxPayload: 256}
}

// Encoder renders payloads with a fixed configuration, so equal payloads yield equal bytes.
type Encoder struct {
	level         goqr.RecoveryLevel
	size          int
	disableBorder bool
	maxPayload    int
}

func NewEncoder(cfg Config) (*Encoder, error) {
	def := DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = def.MaxPayload
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		level:         level,
		size:          cfg.Size,
		disableBorder: cfg.DisableBorder,
		maxPayload:    cfg.MaxPayload,
	}, nil
}

func parseLevel(s string) (goqr.RecoveryLevel, error) {
	switch strings.ToLower(s) {
	case "low":
		return goqr.Low, nil
	case "", "medium":
		return goqr.Medium, nil
	case "high":
		return goqr.High, nil
	case "highest":
		return goqr.Highest, nil
	}
	return goqr.Medium, fmt.Errorf("unknown qr error correction level %q", s)
}

// Encode renders payload as a PNG.
func (e *Encoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, apperr.New(apperr.EncodingError, "qr payload is empty")
	}
	if len(payload) > e.maxPayload {
		return nil, apperr.New(apperr.EncodingError, "qr payload exceeds %d characters", e.maxPayload)
	}

	q, err := goqr.New(payload, e.level)
	if err != nil {
		return nil, apperr.Wrap(apperr.EncodingError, err, "build qr code")
	}
	q.DisableBorder = e.disableBorder

	png, err := q.PNG(e.size)
	if err != nil {
		return nil, apperr.Wrap(apperr.EncodingError, err, "render qr png")
	}
	return png, nil
}

// Decode reads the payload back out of a QR image (png or any registered format).
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "decode image")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "binarize image")
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "no qr code found in image")
	}
	return result.GetText(), nil
}

// DataURI wraps png bytes the way they are stored in qr_data.
func DataURI(png []byte) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png)
}

// ParseDataURI is the inverse of DataURI.
func ParseDataURI(s string) ([]byte, error) {
	if !strings.HasPrefix(s, dataURIPrefix) {
		return nil, apperr.New(apperr.EncodingError, "qr data is not a png data uri")
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, dataURIPrefix))
	if err != nil {
		return nil, apperr.Wrap(apperr.EncodingError, err, "decode qr data")
	}
	return png, nil
}
