package ragd

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kailas-cloud/ragd/internal/transport/tcp"
)

const defaultTimeout = tcp.DefaultClientTimeout

// Client is the ragd client entry point.
type Client struct {
	questions *tcp.Client
	admin     *adminClient
	obs       *observer
}

// New creates a client for the question server at addr (host:port).
// No connection is made until the first call.
func New(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("ragd: address is required")
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.timeout <= 0 {
		cfg.timeout = defaultTimeout
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		questions: tcp.NewClient(addr, cfg.timeout),
		obs:       obs,
	}
	if cfg.adminURL != "" {
		hc := cfg.httpClient
		if hc == nil {
			hc = &http.Client{Timeout: cfg.timeout}
		}
		c.admin = &adminClient{
			base:  strings.TrimRight(cfg.adminURL, "/"),
			token: cfg.token,
			http:  hc,
		}
	}
	return c, nil
}

// Ask sends a question over the question protocol.
func (c *Client) Ask(ctx context.Context, question string) (ans Answer, err error) {
	defer c.obs.begin("ask", viaTCP).end(&err)

	resp, err := c.questions.Ask(ctx, question)
	if err != nil {
		return Answer{}, replyError(err)
	}
	ans = Answer{Text: resp.Answer}
	if resp.Time != nil {
		ans.Time = *resp.Time
	}
	return ans, nil
}

// Ping checks that the question server is up.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer c.obs.begin("ping", viaTCP).end(&err)

	return replyError(c.questions.Ping(ctx))
}

// ServerStatus fetches readiness and pipeline state over the question protocol.
func (c *Client) ServerStatus(ctx context.Context) (st ServerStatus, err error) {
	defer c.obs.begin("status", viaTCP).end(&err)

	resp, err := c.questions.Status(ctx)
	if err != nil {
		return ServerStatus{}, replyError(err)
	}
	if resp.Ready != nil {
		st.Ready = *resp.Ready
	}
	st.Pipeline = resp.Pipeline
	return st, nil
}

func replyError(err error) error {
	var re *tcp.ReplyError
	if !errors.As(err, &re) {
		return err
	}
	out := &ReplyError{Message: re.Message}
	switch re.Message {
	case tcp.MsgEmptyQuestion:
		out.kind = ErrEmptyQuestion
	case tcp.MsgNotReady:
		out.kind = ErrNotReady
	case tcp.MsgBusy:
		out.kind = ErrServerBusy
	case tcp.MsgTooLarge:
		out.kind = ErrTooLarge
	}
	return out
}
