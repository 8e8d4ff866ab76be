// Package panel реализует клиент панели 3X-UI: аутентификацию, чтение inbound,
// создание и удаление клиентских учёток и построение ссылки подключения.
//
// Ни один метод не повторяет запросы самостоятельно, политика повторов
// принадлежит вызывающей стороне.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/metrics"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
)

const defaultRemark = "VLESS-REALITY"

// Gateway клиент панели. Сессия хранится в cookie jar и живёт всё время процесса.
type Gateway struct {
	baseURL    string
	username   string
	password   string
	timeout    time.Duration
	server     config.Server
	publicKey  string
	httpClient *http.Client
	log        *slog.Logger
}

// New создаёт клиента панели. Публичный ключ REALITY вычисляется из приватного.
func New(cfg config.Panel, server config.Server, log *slog.Logger) (*Gateway, error) {
	const op = "panel.New"

	publicKey, err := PublicKey(server.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Gateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   timeout,
		server:    server,
		publicKey: publicKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: log,
	}, nil
}

// Authenticate открывает сессию в панели.
func (g *Gateway) Authenticate(ctx context.Context) error {
	const op = "panel.Authenticate"

	status, body, err := g.do(ctx, "login", http.MethodPost, "/login", map[string]string{
		"username": g.username,
		"password": g.password,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%s: %w: status %d", op, ErrAuth, status)
	}
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil || !resp.Success {
		return fmt.Errorf("%s: %w: %s", op, ErrAuth, resp.Msg)
	}
	return nil
}

// ListInbounds возвращает inbound панели в порядке, в котором их отдаёт панель.
func (g *Gateway) ListInbounds(ctx context.Context) ([]Inbound, error) {
	const op = "panel.ListInbounds"

	resp, err := g.call(ctx, "list_inbounds", http.MethodGet, "/panel/api/inbounds/list", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var dtos []inboundDTO
	if len(resp.Obj) > 0 && string(resp.Obj) != "null" {
		if err := json.Unmarshal(resp.Obj, &dtos); err != nil {
			return nil, fmt.Errorf("%s: %w: decode inbounds: %v", op, ErrUpstream, err)
		}
	}

	inbounds := make([]Inbound, 0, len(dtos))
	for _, dto := range dtos {
		inb, err := toInbound(dto)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		inbounds = append(inbounds, inb)
	}
	return inbounds, nil
}

// FindInbound ищет inbound по ID. Второе значение false, если его нет в панели.
func (g *Gateway) FindInbound(ctx context.Context, inboundID int) (*Inbound, bool, error) {
	inbounds, err := g.ListInbounds(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range inbounds {
		if inbounds[i].ID == inboundID {
			return &inbounds[i], true, nil
		}
	}
	return nil, false, nil
}

// CreateInbound создаёт inbound VLESS-REALITY с параметрами сервера из конфига.
func (g *Gateway) CreateInbound(ctx context.Context) (*Inbound, error) {
	const op = "panel.CreateInbound"

	dto, err := g.defaultInbound()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := g.call(ctx, "create_inbound", http.MethodPost, "/panel/api/inbounds/add", dto)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var created inboundDTO
	if err := json.Unmarshal(resp.Obj, &created); err == nil && created.ID != 0 {
		inb, err := toInbound(created)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &inb, nil
	}

	// панель не вернула объект, ищем созданный inbound по порту
	inbounds, err := g.ListInbounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range inbounds {
		if inbounds[i].Port == dto.Port && inbounds[i].Remark == dto.Remark {
			return &inbounds[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w: created inbound not found", op, ErrUpstream)
}

// CreateCredential добавляет в inbound клиента с локально сгенерированным UUID,
// без срока действия и без лимита трафика.
//
// Успешного HTTP-статуса достаточно: ID известен заранее, поэтому
// нечитаемое тело ответа не считается ошибкой.
func (g *Gateway) CreateCredential(ctx context.Context, inboundID int) (Credential, error) {
	const op = "panel.CreateCredential"

	id := uuid.NewString()
	label := "user_" + id[:8]
	settings, err := json.Marshal(vlessSettings{Clients: []clientSettings{{
		ID:     id,
		Flow:   g.server.Flow,
		Email:  label,
		Enable: true,
	}}})
	if err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	status, body, err := g.do(ctx, "create_credential", http.MethodPost, "/panel/api/inbounds/addClient", map[string]any{
		"id":       inboundID,
		"settings": string(settings),
	})
	if err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := statusError(status); err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.log.Warn("unreadable addClient response, treating as created",
			sl.Op(op), slog.String("credential_id", id), sl.Err(err))
	} else if !resp.Success {
		g.log.Warn("addClient reported failure with success status, treating as created",
			sl.Op(op), slog.String("credential_id", id), slog.String("msg", resp.Msg))
	}

	return Credential{ID: id, InboundID: inboundID, Label: label}, nil
}

// DeleteCredential удаляет клиента из inbound. Идемпотентна: если клиента уже нет,
// удаление не вызывается. После удаления inbound перечитывается, и если клиент
// остался, список клиентов перезаписывается целиком без него.
func (g *Gateway) DeleteCredential(ctx context.Context, inboundID int, credentialID string) error {
	const op = "panel.DeleteCredential"
	log := g.log.With(sl.Op(op), slog.Int("inbound_id", inboundID), slog.String("credential_id", credentialID))

	inb, found, err := g.FindInbound(ctx, inboundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || !inb.HasClient(credentialID) {
		log.Debug("credential already absent")
		return nil
	}

	path := fmt.Sprintf("/panel/api/inbounds/delClient/%d/%s", inboundID, credentialID)
	if _, err := g.call(ctx, "delete_credential", http.MethodPost, path, nil); err != nil {
		log.Warn("delClient failed, verifying state", sl.Err(err))
	}

	inb, found, err = g.FindInbound(ctx, inboundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || !inb.HasClient(credentialID) {
		return nil
	}

	log.Warn("credential still present after delClient, rewriting client list")
	if err := g.removeClient(ctx, inb, credentialID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// removeClient перезаписывает inbound со списком клиентов без credentialID.
func (g *Gateway) removeClient(ctx context.Context, inb *Inbound, credentialID string) error {
	var settings map[string]json.RawMessage
	if err := json.Unmarshal([]byte(inb.raw.Settings), &settings); err != nil {
		return fmt.Errorf("%w: decode settings: %v", ErrUpstream, err)
	}
	var clients []map[string]any
	if raw, ok := settings["clients"]; ok {
		if err := json.Unmarshal(raw, &clients); err != nil {
			return fmt.Errorf("%w: decode clients: %v", ErrUpstream, err)
		}
	}

	kept := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		if id, _ := c["id"].(string); id == credentialID {
			continue
		}
		kept = append(kept, c)
	}
	encoded, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	settings["clients"] = encoded
	newSettings, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	dto := inb.raw
	dto.Settings = string(newSettings)
	path := fmt.Sprintf("/panel/api/inbounds/update/%d", inb.ID)
	_, err = g.call(ctx, "update_inbound", http.MethodPost, path, dto)
	return err
}

// call выполняет запрос и проверяет статус и поле success в ответе.
func (g *Gateway) call(ctx context.Context, operation, method, path string, payload any) (*apiResponse, error) {
	status, body, err := g.do(ctx, operation, method, path, payload)
	if err != nil {
		return nil, err
	}
	if err := statusError(status); err != nil {
		return nil, err
	}
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.Msg)
	}
	return &resp, nil
}

// do отправляет запрос с таймаутом. Ошибки транспорта и таймауты приводятся к ErrUpstream.
func (g *Gateway) do(ctx context.Context, operation, method, path string, payload any) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	metrics.PanelRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	return resp.StatusCode, body, nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, status)
	case status < 200 || status >= 300:
		return fmt.Errorf("%w: status %d", ErrUpstream, status)
	}
	return nil
}

func toInbound(dto inboundDTO) (Inbound, error) {
	inb := Inbound{
		ID:       dto.ID,
		Remark:   dto.Remark,
		Port:     dto.Port,
		Protocol: dto.Protocol,
		Enable:   dto.Enable,
		raw:      dto,
	}
	if dto.Settings == "" {
		return inb, nil
	}
	var settings struct {
		Clients []InboundClient `json:"clients"`
	}
	if err := json.Unmarshal([]byte(dto.Settings), &settings); err != nil {
		return Inbound{}, fmt.Errorf("%w: inbound %d settings: %v", ErrUpstream, dto.ID, err)
	}
	inb.Clients = settings.Clients
	return inb, nil
}

func (g *Gateway) defaultInbound() (inboundDTO, error) {
	settings, err := json.Marshal(vlessSettings{
		Clients:    []clientSettings{},
		Decryption: "none",
		Fallbacks:  []any{},
	})
	if err != nil {
		return inboundDTO{}, err
	}
	stream, err := json.Marshal(streamSettings{
		Network:       "tcp",
		Security:      "reality",
		ExternalProxy: []any{},
		RealitySettings: realitySettings{
			Dest:        g.server.Dest,
			ServerNames: []string{g.server.SNI},
			PrivateKey:  g.server.PrivateKey,
			ShortIDs:    []string{g.server.ShortID},
			Settings: realityClientSettings{
				PublicKey:   g.publicKey,
				Fingerprint: g.server.Fingerprint,
				SpiderX:     "/",
			},
		},
		TCPSettings: tcpSettings{Header: map[string]any{"type": "none"}},
	})
	if err != nil {
		return inboundDTO{}, err
	}
	sniffing, err := json.Marshal(sniffingSettings{
		DestOverride: []string{"http", "tls", "quic", "fakedns"},
	})
	if err != nil {
		return inboundDTO{}, err
	}
	allocate, err := json.Marshal(allocateSettings{Strategy: "always", Refresh: 5, Concurrency: 3})
	if err != nil {
		return inboundDTO{}, err
	}

	return inboundDTO{
		Remark:         defaultRemark,
		Enable:         true,
		Port:           g.server.Port,
		Protocol:       "vless",
		Settings:       string(settings),
		StreamSettings: string(stream),
		Sniffing:       string(sniffing),
		Allocate:       string(allocate),
	}, nil
}
