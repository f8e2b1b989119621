// Package qr renders pairing secrets as scannable images.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DataURL encodes a pairing secret as a PNG data URL suitable for direct
// embedding in an <img> tag. Stateless.
func DataURL(secret string) (string, error) {
	png, err := qrcode.Encode(secret, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
