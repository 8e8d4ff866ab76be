package panel

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"golang.org/x/crypto/curve25519"
)

// Descriptor строит ссылку vless:// для клиента. Сетевых вызовов нет,
// результат зависит только от ID учётки и статических параметров сервера.
func (g *Gateway) Descriptor(cred Credential) string {
	return RenderDescriptor(cred.ID, DescriptorParams{
		Address:     g.server.Address,
		Port:        g.server.Port,
		PublicKey:   g.publicKey,
		Fingerprint: g.server.Fingerprint,
		SNI:         g.server.SNI,
		ShortID:     g.server.ShortID,
		Flow:        g.server.Flow,
	})
}

// DescriptorParams статические параметры подключения к серверу.
type DescriptorParams struct {
	Address     string
	Port        int
	PublicKey   string
	Fingerprint string
	SNI         string
	ShortID     string
	Flow        string
}

// RenderDescriptor возвращает ссылку vless:// для указанного ID учётки.
func RenderDescriptor(credentialID string, p DescriptorParams) string {
	label := credentialID
	if len(label) > 8 {
		label = label[:8]
	}
	return fmt.Sprintf(
		"vless://%s@%s:%d?type=tcp&security=reality&pbk=%s&fp=%s&sni=%s&sid=%s&spx=%%2F&flow=%s#%s",
		credentialID,
		p.Address,
		p.Port,
		url.QueryEscape(p.PublicKey),
		url.QueryEscape(p.Fingerprint),
		url.QueryEscape(p.SNI),
		url.QueryEscape(p.ShortID),
		url.QueryEscape(p.Flow),
		url.PathEscape(label),
	)
}

// PublicKey вычисляет публичный ключ X25519 из приватного ключа REALITY
// в формате xray (base64 URL без паддинга).
func PublicKey(privateKey string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("decode reality private key: %w", err)
	}
	if len(raw) != curve25519.ScalarSize {
		return "", fmt.Errorf("reality private key must be %d bytes, got %d", curve25519.ScalarSize, len(raw))
	}
	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive reality public key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(pub), nil
}
