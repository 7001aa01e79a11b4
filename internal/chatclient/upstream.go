package chatclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/chatrelay/internal/model"
)

// StatusError é retornado quando o upstream responde com status fora de 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid HTTP status code %d: %s", e.StatusCode, e.Body)
}

// RemoteError carrega o campo "error" de uma resposta do upstream
type RemoteError struct {
	Message  string
	Instance string
}

func (e *RemoteError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("upstream %s: %s", e.Instance, e.Message)
	}
	return "upstream: " + e.Message
}

// upstreamBody é o formato de resposta do relay (e do sidecar)
type upstreamBody struct {
	Instance       string          `json:"instance"`
	ConversationID string          `json:"conversationId"`
	Response       string          `json:"response"`
	MessageID      string          `json:"messageId"`
	Error          json.RawMessage `json:"error"`
}

// Upstream fala HTTP com um sidecar de automação de browser ou com outra
// instância do relay, usando o mesmo formato de query do endpoint "/"
type Upstream struct {
	base       *url.URL
	httpClient *http.Client
	debug      bool
}

// NewUpstream cria o cliente. timeout zero significa sem timeout.
func NewUpstream(baseURL string, opts Options, timeout time.Duration) (*Upstream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid upstream URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid upstream URL %q", baseURL)
	}

	header := http.Header{}
	if opts.Email != "" || opts.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.Email + ":" + opts.Password))
		header.Set("Authorization", "Basic "+token)
	}
	header.Set("Minimize", strconv.FormatBool(opts.Minimize))

	return &Upstream{
		base: u,
		httpClient: &http.Client{
			Transport: &headerTransport{
				Base:   http.DefaultTransport,
				Header: header,
				Debug:  opts.Debug,
			},
			Timeout: timeout,
		},
		debug: opts.Debug,
	}, nil
}

func (u *Upstream) endpoint(path string) *url.URL {
	ep := *u.base
	ep.Path = strings.TrimSuffix(ep.Path, "/") + path
	return &ep
}

// InitSession verifica que o upstream está pronto (GET /ready)
func (u *Upstream) InitSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.endpoint("/ready").String(), nil)
	if err != nil {
		return errors.Wrap(err, "build ready request")
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "upstream not reachable")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrap(&StatusError{StatusCode: resp.StatusCode, Body: string(body)}, "upstream not ready")
	}
	log.Info().Str("upstream", u.base.Redacted()).Str("ready", strings.TrimSpace(string(body))).Msg("upstream session ready")
	return nil
}

func (u *Upstream) buildRequest(ctx context.Context, prompt string, opts model.SendOptions) (*http.Request, error) {
	ep := u.endpoint("/")
	query := ep.Query()
	query.Set("q", prompt)
	if opts.ConversationID != "" {
		query.Set("conversationId", opts.ConversationID)
	}
	if opts.ParentMessageID != "" {
		query.Set("parentMessageId", opts.ParentMessageID)
	}
	messageID := opts.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}
	query.Set("messageId", messageID)
	ep.RawQuery = query.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, ep.String(), nil)
}

// SendMessage envia o prompt e decodifica a resposta do upstream
func (u *Upstream) SendMessage(ctx context.Context, prompt string, opts model.SendOptions) (*model.Result, error) {
	req, err := u.buildRequest(ctx, prompt, opts)
	if err != nil {
		return nil, errors.Wrap(err, "build request failed")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "api call error")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var body upstreamBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode api response failed")
	}
	if msg := errorMessage(body.Error); msg != "" {
		return nil, &RemoteError{Message: msg, Instance: body.Instance}
	}

	if u.debug {
		log.Debug().
			Str("instance", body.Instance).
			Str("conversationId", body.ConversationID).
			Str("messageId", body.MessageID).
			Msg("upstream response")
	}

	return &model.Result{
		ConversationID: body.ConversationID,
		Response:       body.Response,
		MessageID:      body.MessageID,
	}, nil
}

// errorMessage aceita tanto "error": "texto" quanto "error": {...}. Campo
// ausente, null ou false significa sucesso; qualquer outro valor é erro, mesmo
// sem mensagem.
func errorMessage(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "false" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return model.UnknownError
		}
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if trimmed == "{}" {
			return model.UnknownError
		}
	}
	return trimmed
}
