package panel

import "encoding/json"

// Inbound описание inbound (listener) в панели вместе со списком клиентов.
type Inbound struct {
	ID       int             `json:"id"`
	Remark   string          `json:"remark"`
	Port     int             `json:"port"`
	Protocol string          `json:"protocol"`
	Enable   bool            `json:"enable"`
	Clients  []InboundClient `json:"clients"`

	raw inboundDTO
}

// HasClient сообщает, есть ли клиент с указанным ID в inbound.
func (i *Inbound) HasClient(clientID string) bool {
	for _, c := range i.Clients {
		if c.ID == clientID {
			return true
		}
	}
	return false
}

// InboundClient клиент (учётка) внутри inbound.
type InboundClient struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Flow   string `json:"flow"`
	Enable bool   `json:"enable"`
}

// Credential созданная в панели учётка. ID генерируется локально.
type Credential struct {
	ID        string `json:"id"`
	InboundID int    `json:"inbound_id"`
	Label     string `json:"label"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// inboundDTO формат inbound в API 3X-UI: settings, streamSettings и sniffing
// передаются JSON-строками.
type inboundDTO struct {
	ID             int    `json:"id,omitempty"`
	Up             int64  `json:"up"`
	Down           int64  `json:"down"`
	Total          int64  `json:"total"`
	Remark         string `json:"remark"`
	Enable         bool   `json:"enable"`
	ExpiryTime     int64  `json:"expiryTime"`
	Listen         string `json:"listen"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
	Sniffing       string `json:"sniffing"`
	Allocate       string `json:"allocate,omitempty"`
}

type clientSettings struct {
	ID         string `json:"id"`
	Flow       string `json:"flow"`
	Email      string `json:"email"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
}

type vlessSettings struct {
	Clients    []clientSettings `json:"clients"`
	Decryption string           `json:"decryption"`
	Fallbacks  []any            `json:"fallbacks"`
}

type streamSettings struct {
	Network         string          `json:"network"`
	Security        string          `json:"security"`
	ExternalProxy   []any           `json:"externalProxy"`
	RealitySettings realitySettings `json:"realitySettings"`
	TCPSettings     tcpSettings     `json:"tcpSettings"`
}

type realitySettings struct {
	Show        bool                  `json:"show"`
	Xver        int                   `json:"xver"`
	Dest        string                `json:"dest"`
	ServerNames []string              `json:"serverNames"`
	PrivateKey  string                `json:"privateKey"`
	MinClient   string                `json:"minClient"`
	MaxClient   string                `json:"maxClient"`
	MaxTimediff int                   `json:"maxTimediff"`
	ShortIDs    []string              `json:"shortIds"`
	Settings    realityClientSettings `json:"settings"`
}

type realityClientSettings struct {
	PublicKey   string `json:"publicKey"`
	Fingerprint string `json:"fingerprint"`
	ServerName  string `json:"serverName"`
	SpiderX     string `json:"spiderX"`
}

type tcpSettings struct {
	AcceptProxyProtocol bool           `json:"acceptProxyProtocol"`
	Header              map[string]any `json:"header"`
}

type sniffingSettings struct {
	Enabled      bool     `json:"enabled"`
	DestOverride []string `json:"destOverride"`
}

type allocateSettings struct {
	Strategy    string `json:"strategy"`
	Refresh     int    `json:"refresh"`
	Concurrency int    `json:"concurrency"`
}
