package xano

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"muebles/internal/models"
)

// Identity resolves credentials against the upstream user tables. The role
// context picks the candidate endpoints; the administrator context probes
// leniently because the table holding administrators is not known upfront.
type Identity struct {
	client *Client
	login  map[models.Role][]Candidate
	me     map[models.Role][]Candidate
}

// NewIdentity builds the per-role candidate lists.
func NewIdentity(client *Client, cfg Config) *Identity {
	customerPaths := withConfigured(cfg.LoginEndpoint, "/auth/login", "/usuarios/login", "/usuario/login")
	adminPaths := withConfigured(cfg.AdminLoginEndpoint, "/usuario/login", "/usuarios/login", "/auth/usuario/login", "/admin/login", "/auth/login")

	return &Identity{
		client: client,
		login: map[models.Role][]Candidate{
			models.RoleCustomer:      onGroups([]Group{GroupAuth, GroupGeneral}, http.MethodPost, customerPaths),
			models.RoleAdministrator: onGroups([]Group{GroupAdmin, GroupAuth}, http.MethodPost, adminPaths),
		},
		me: map[models.Role][]Candidate{
			models.RoleCustomer:      onGroups([]Group{GroupAuth, GroupGeneral}, http.MethodGet, []string{"/auth/me"}),
			models.RoleAdministrator: onGroups([]Group{GroupAdmin, GroupAuth}, http.MethodGet, []string{"/auth/me", "/usuario/me"}),
		},
	}
}

func withConfigured(configured string, defaults ...string) []string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return defaults
	}
	if !strings.HasPrefix(configured, "/") {
		configured = "/" + configured
	}
	return append([]string{configured}, defaults...)
}

func onGroups(groups []Group, method string, paths []string) []Candidate {
	return expand(groups, paths, func(path string) []Candidate {
		return []Candidate{{Method: method, Path: path}}
	})
}

type loginPayload struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Correo     string `json:"correo"`
	Contrasena string `json:"contrasena"`
}

func (i *Identity) classifierFor(role models.Role) classifier {
	if role == models.RoleAdministrator {
		return i.client.lenient
	}
	return i.client.classify
}

// Login exchanges credentials for an upstream token and the matching actor.
func (i *Identity) Login(ctx context.Context, role models.Role, email, password string) (*models.Actor, error) {
	payload := loginPayload{Email: email, Password: password, Correo: email, Contrasena: password}
	res := i.client.probe(ctx, "login", i.login[role], "", payload, i.classifierFor(role))
	if err := outcomeError(res, "login"); err != nil {
		return nil, err
	}

	v, err := decode(res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	token := extractToken(v)
	if token == "" {
		return nil, errors.Wrap(models.ErrUnauthenticated, "login response carries no token")
	}
	if actor, ok := normalizeActor(v); ok {
		actor.Token = token
		return actor, nil
	}
	return i.Me(ctx, role, token)
}

// Me resolves a bearer token into the actor it belongs to.
func (i *Identity) Me(ctx context.Context, role models.Role, token string) (*models.Actor, error) {
	if token == "" {
		return nil, models.ErrUnauthenticated
	}
	res := i.client.probe(ctx, "me", i.me[role], token, nil, i.classifierFor(role))
	if err := outcomeError(res, "me"); err != nil {
		return nil, err
	}

	v, err := decode(res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "me")
	}
	actor, ok := normalizeActor(v)
	if !ok {
		return nil, errors.Wrap(models.ErrUnauthenticated, "profile carries no user id")
	}
	actor.Token = token
	return actor, nil
}

// outcomeError turns a failed identity probe into a domain error. Exhausting
// the candidates after any credential rejection means the caller is not
// known to any table, not that the upstream is down.
func outcomeError(res probeResult, op string) error {
	switch res.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeFatal:
		return res.Err
	}
	for _, a := range res.Attempts {
		var herr *HTTPError
		if errors.As(a.Err, &herr) {
			switch herr.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return errors.Wrap(models.ErrUnauthenticated, op)
			}
		}
	}
	return res.exhausted(op)
}
