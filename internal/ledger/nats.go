package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix for ledger requests
const DefaultPrefix = "ledger"

const (
	opBalance = "balance"
	opDebit   = "debit"
	opCredit  = "credit"
)

// wire error codes
const (
	codeInsufficientFunds = "insufficient_funds"
	codeInvalidAmount     = "invalid_amount"
	codeInvalidAccount    = "invalid_account"
	codeInternal          = "internal"
)

type request struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount,omitempty"`
	Memo    string `json:"memo,omitempty"`
}

type response struct {
	Balance int64  `json:"balance"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Connect dials a NATS server with reconnect settings suited to a long
// running game server.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect %s: %w", url, err)
	}
	return nc, nil
}

// Requester is the request side of a NATS connection
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Client is a Ledger backed by a remote Responder over NATS request/reply.
type Client struct {
	conn    Requester
	prefix  string
	timeout time.Duration
}

var _ Ledger = (*Client)(nil)

// NewClient creates a ledger client. A zero timeout defaults to 5s.
func NewClient(conn Requester, prefix string, timeout time.Duration) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{conn: conn, prefix: prefix, timeout: timeout}
}

func (c *Client) call(ctx context.Context, op string, req request) (int64, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, c.prefix+"."+op, data)
	if err != nil {
		return 0, fmt.Errorf("ledger: %s request: %w", op, err)
	}

	var resp response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return 0, fmt.Errorf("ledger: decode %s reply: %w", op, err)
	}
	return resp.Balance, decodeError(resp)
}

// Balance returns the current balance of account
func (c *Client) Balance(ctx context.Context, account string) (int64, error) {
	return c.call(ctx, opBalance, request{Account: account})
}

// Debit removes amount from account
func (c *Client) Debit(ctx context.Context, account string, amount int64, memo string) (int64, error) {
	return c.call(ctx, opDebit, request{Account: account, Amount: amount, Memo: memo})
}

// Credit adds amount to account
func (c *Client) Credit(ctx context.Context, account string, amount int64, memo string) (int64, error) {
	return c.call(ctx, opCredit, request{Account: account, Amount: amount, Memo: memo})
}

func encodeError(err error) (code, msg string) {
	if err == nil {
		return "", ""
	}
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		code = codeInsufficientFunds
	case errors.Is(err, ErrInvalidAmount):
		code = codeInvalidAmount
	case errors.Is(err, ErrInvalidAccount):
		code = codeInvalidAccount
	default:
		code = codeInternal
	}
	return code, err.Error()
}

func decodeError(resp response) error {
	var base error
	switch resp.Error {
	case "":
		return nil
	case codeInsufficientFunds:
		base = ErrInsufficientFunds
	case codeInvalidAmount:
		base = ErrInvalidAmount
	case codeInvalidAccount:
		base = ErrInvalidAccount
	default:
		return fmt.Errorf("ledger: remote error: %s", resp.Message)
	}
	return fmt.Errorf("%w (remote: %s)", base, resp.Message)
}

// Responder serves a Ledger on <prefix>.balance, <prefix>.debit and
// <prefix>.credit. Several responders can share the load through a queue
// group.
type Responder struct {
	ledger Ledger
	prefix string
	logger *log.Logger
	subs   []*nats.Subscription
}

// NewResponder creates a responder for l
func NewResponder(l Ledger, prefix string, logger *log.Logger) *Responder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Responder{ledger: l, prefix: prefix, logger: logger.WithPrefix("ledger")}
}

// Subscribe registers the handlers on nc
func (r *Responder) Subscribe(nc *nats.Conn) error {
	for _, op := range []string{opBalance, opDebit, opCredit} {
		subject := r.prefix + "." + op
		sub, err := nc.QueueSubscribe(subject, r.prefix, func(m *nats.Msg) {
			if err := m.Respond(r.Handle(context.Background(), op, m.Data)); err != nil {
				r.logger.Warn("Failed to reply", "subject", subject, "error", err)
			}
		})
		if err != nil {
			r.Close()
			return fmt.Errorf("ledger: subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}
	r.logger.Info("Serving ledger", "prefix", r.prefix)
	return nil
}

// Handle decodes one request, applies it and encodes the reply.
func (r *Responder) Handle(ctx context.Context, op string, data []byte) []byte {
	var (
		req request
		bal int64
		err error
	)
	if err = json.Unmarshal(data, &req); err != nil {
		err = fmt.Errorf("bad request: %w", err)
	} else {
		switch op {
		case opBalance:
			bal, err = r.ledger.Balance(ctx, req.Account)
		case opDebit:
			bal, err = r.ledger.Debit(ctx, req.Account, req.Amount, req.Memo)
		case opCredit:
			bal, err = r.ledger.Credit(ctx, req.Account, req.Amount, req.Memo)
		default:
			err = fmt.Errorf("unknown operation %q", op)
		}
	}

	resp := response{Balance: bal}
	resp.Error, resp.Message = encodeError(err)
	if err != nil {
		r.logger.Debug("Ledger request failed", "op", op, "account", req.Account, "error", err)
	} else if op != opBalance {
		r.logger.Debug("Ledger updated", "op", op, "account", req.Account, "amount", req.Amount, "balance", bal)
	}

	out, _ := json.Marshal(resp)
	return out
}

// Close unsubscribes every handler
func (r *Responder) Close() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.subs = nil
}
