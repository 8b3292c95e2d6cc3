package xano

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Candidate is one guess at where an upstream operation lives.
type Candidate struct {
	Group  Group
	Method string
	Path   string
	Query  url.Values
}

// Outcome tags how a probe attempt, or a whole probe, ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeShapeFailure
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeShapeFailure:
		return "endpoint_shape_failure"
	default:
		return "fatal"
	}
}

// classifier decides whether a failed attempt lets probing continue.
type classifier func(err error) Outcome

// probeResult is the tagged result of a probe: Success carries Data,
// ShapeFailure means every candidate was exhausted, Fatal carries Err.
type probeResult struct {
	Outcome  Outcome
	Data     []byte
	Err      error
	Attempts []Attempt
}

func (r probeResult) exhausted(op string) error {
	return &ExhaustedError{Op: op, Attempts: r.Attempts}
}

// classify is the default policy: missing routes, routing messages,
// transport failures and timeouts move on; everything else is fatal.
func (c *Client) classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		if herr.Status == http.StatusNotFound || herr.Status == http.StatusMethodNotAllowed {
			return OutcomeShapeFailure
		}
		if c.routingMessage(herr.Message) {
			return OutcomeShapeFailure
		}
		return OutcomeFatal
	}
	var terr *transportError
	if errors.As(err, &terr) {
		return OutcomeShapeFailure
	}
	return OutcomeFatal
}

// lenient also moves on from rejected credentials and bad requests, for
// identity lookups where the right user table is unknown.
func (c *Client) lenient(err error) Outcome {
	var herr *HTTPError
	if errors.As(err, &herr) {
		switch herr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return OutcomeShapeFailure
		}
	}
	return c.classify(err)
}

func (c *Client) routingMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, hint := range c.hints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// probe tries candidates in order and stops at the first success or the
// first fatal failure. Candidates resolving to an already tried method+URL
// are skipped.
func (c *Client) probe(ctx context.Context, op string, cands []Candidate, token string, body interface{}, classify classifier) probeResult {
	if classify == nil {
		classify = c.classify
	}
	var res probeResult
	seen := make(map[string]bool, len(cands))
	for _, cand := range cands {
		rawURL, ok := c.resolve(cand)
		if !ok || seen[cand.Method+" "+rawURL] {
			continue
		}
		seen[cand.Method+" "+rawURL] = true

		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeFatal
			res.Err = errors.Wrapf(err, "%s aborted", op)
			return res
		}

		started := time.Now()
		data, status, err := c.send(ctx, cand.Method, rawURL, token, body)
		outcome := classify(err)
		res.Attempts = append(res.Attempts, Attempt{Candidate: cand, URL: rawURL, Outcome: outcome, Err: err})

		fields := []zap.Field{
			zap.String("op", op),
			zap.String("method", cand.Method),
			zap.String("url", rawURL),
			zap.Int("status", status),
			zap.Stringer("outcome", outcome),
			zap.Duration("duration", time.Since(started)),
		}
		switch outcome {
		case OutcomeSuccess:
			c.logger.Info("upstream attempt succeeded", fields...)
			res.Outcome = OutcomeSuccess
			res.Data = data
			return res
		case OutcomeShapeFailure:
			c.logger.Warn("upstream attempt missed, trying next candidate", append(fields, zap.Error(err))...)
		default:
			c.logger.Error("upstream attempt failed", append(fields, zap.Error(err))...)
			res.Outcome = OutcomeFatal
			res.Err = errors.Wrapf(err, "%s", op)
			return res
		}
	}
	res.Outcome = OutcomeShapeFailure
	c.logger.Warn("upstream candidates exhausted", zap.String("op", op), zap.Int("attempts", len(res.Attempts)))
	return res
}

// expand crosses groups and resource names with a per-resource shape,
// groups outermost.
func expand(groups []Group, resources []string, shape func(res string) []Candidate) []Candidate {
	var out []Candidate
	for _, g := range groups {
		for _, res := range resources {
			for _, cand := range shape(res) {
				cand.Group = g
				out = append(out, cand)
			}
		}
	}
	return out
}
