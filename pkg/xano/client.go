package xano

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Group is an upstream API group; each group has its own base URL.
type Group string

const (
	GroupAuth    Group = "auth"
	GroupGeneral Group = "general"
	GroupAdmin   Group = "admin"
)

// Config holds the upstream connection and naming settings.
type Config struct {
	BaseURL            string
	AuthBaseURL        string
	AdminBaseURL       string
	Timeout            time.Duration
	OrderResources     []string
	LineResources      []string
	RoutingHints       []string
	LoginEndpoint      string
	AdminLoginEndpoint string
}

var (
	DefaultOrderResources = []string{"pedidos", "pedido"}
	DefaultLineResources  = []string{"detalles_pedido", "detalle_pedido"}
	DefaultRoutingHints   = []string{"unable to locate request", "error_code_not_found", "route not found", "endpoint not found"}
)

const defaultTimeout = 8 * time.Second

// Client sends requests to the upstream API groups.
type Client struct {
	bases   map[Group]string
	timeout time.Duration
	hints   []string
	logger  *zap.Logger
}

// NewClient creates a client. Groups with an empty base URL are skipped when
// probing; the auth and admin groups fall back to nothing, not to BaseURL.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hints := cfg.RoutingHints
	if len(hints) == 0 {
		hints = DefaultRoutingHints
	}
	lowered := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			lowered = append(lowered, h)
		}
	}
	return &Client{
		bases: map[Group]string{
			GroupAuth:    strings.TrimRight(cfg.AuthBaseURL, "/"),
			GroupGeneral: strings.TrimRight(cfg.BaseURL, "/"),
			GroupAdmin:   strings.TrimRight(cfg.AdminBaseURL, "/"),
		},
		timeout: timeout,
		hints:   lowered,
		logger:  logger.Named("xano"),
	}
}

// resolve builds the absolute URL of a candidate.
func (c *Client) resolve(cand Candidate) (string, bool) {
	base := c.bases[cand.Group]
	if base == "" {
		return "", false
	}
	u := base + cand.Path
	if len(cand.Query) > 0 {
		u += "?" + cand.Query.Encode()
	}
	return u, true
}

// transportError marks failures that happened before an HTTP status existed.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// send performs one request bounded by the per-attempt timeout.
func (c *Client) send(ctx context.Context, method, rawURL, token string, body interface{}) ([]byte, int, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, 0, context.DeadlineExceeded
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(rawURL)
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		agent.JSON(body)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, 0, &transportError{err: err}
	}

	status, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errs[0]
		if errors.Is(err, fasthttp.ErrTimeout) {
			err = errors.Wrapf(context.DeadlineExceeded, "no answer within %s", timeout)
		}
		return nil, 0, &transportError{err: err}
	}
	if status < 200 || status >= 300 {
		return nil, status, parseHTTPError(status, respBody)
	}
	return respBody, status, nil
}

// maxErrorMessage caps, in characters, the upstream message kept on an HTTPError.
const maxErrorMessage = 200

// parseHTTPError extracts the upstream code and message without keeping the body.
func parseHTTPError(status int, body []byte) *HTTPError {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
		if payload.Code != "" {
			msg = strings.TrimSpace(payload.Code + " " + msg)
		}
	} else {
		msg = strings.TrimSpace(string(body))
	}
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if r := []rune(msg); len(r) > maxErrorMessage {
		msg = string(r[:maxErrorMessage])
	}
	return &HTTPError{Status: status, Message: msg}
}

// decode parses a response body keeping numbers exact.
func decode(data []byte) (interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "decode upstream response")
	}
	return v, nil
}

func queryOf(pairs ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			q.Set(pairs[i], pairs[i+1])
		}
	}
	return q
}
