// Package intent classifies free-form chat messages into structured commands.
package intent

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
)

// Kind identifies what a message asked for
type Kind string

const (
	KindSend         Kind = "send"
	KindRequest      Kind = "request"
	KindSplit        Kind = "split"
	KindBalance      Kind = "balance"
	KindHistory      Kind = "history"
	KindDeposit      Kind = "deposit"
	KindFaucet       Kind = "faucet"
	KindPrice        Kind = "price"
	KindHelp         Kind = "help"
	KindUnrecognized Kind = "unrecognized"
)

// Intent is the structured form of a parsed message
type Intent struct {
	Kind       Kind
	Amount     decimal.Decimal
	Token      string
	Recipient  string   // raw recipient token, resolution happens later
	Recipients []string // split participants, raw
	Message    string
}

// Parser turns message text into intents. Pattern families are tried in
// order and the first match wins: the ordering below is a contract, kept
// mutually exclusive by keyword prefix and covered by tests.
type Parser struct {
	supported map[string]bool
	native    string
	patterns  []pattern
}

type pattern struct {
	re    *regexp.Regexp
	build func(p *Parser, m []string) (Intent, error)
}

var (
	reSend    = regexp.MustCompile(`(?i)^(?:send|pay|transfer)\s+(\S+)\s*([a-zA-Z]{2,6})?\s+to\s+(\S+)(?:\s+(.+))?$`)
	reRequest = regexp.MustCompile(`(?i)^request\s+(\S+)\s*([a-zA-Z]{2,6})?\s+from\s+(\S+)(?:\s+(.+))?$`)
	reSplit   = regexp.MustCompile(`(?i)^(?:split|divide)\s+(\S+)\s*([a-zA-Z]{2,6})?\s+(?:between|among|with)\s+(.+)$`)
	reBalance = regexp.MustCompile(`(?i)^/?balance$`)
	reHistory = regexp.MustCompile(`(?i)^/?(?:history|transactions)$`)
	reDeposit = regexp.MustCompile(`(?i)^/?(?:deposit|receive|address)$`)
	reFaucet  = regexp.MustCompile(`(?i)^/?faucet$`)
	rePrice   = regexp.MustCompile(`(?i)^/?(?:price|rate)(?:\s+(?:of\s+)?([a-zA-Z]{2,6}))?$`)
	reHelp    = regexp.MustCompile(`(?i)^/?(?:help|start)$`)
)

// NewParser creates a parser for the given supported token set. The first
// token in the set is the default when a message names no token.
func NewParser(supportedTokens []string) *Parser {
	p := &Parser{supported: make(map[string]bool)}
	for i, t := range supportedTokens {
		sym := strings.ToUpper(t)
		if i == 0 {
			p.native = sym
		}
		p.supported[sym] = true
	}

	p.patterns = []pattern{
		{reSend, buildSend},
		{reRequest, buildRequest},
		{reSplit, buildSplit},
		{reBalance, fixed(KindBalance)},
		{reHistory, fixed(KindHistory)},
		{reDeposit, fixed(KindDeposit)},
		{reFaucet, fixed(KindFaucet)},
		{rePrice, buildPrice},
		{reHelp, fixed(KindHelp)},
	}
	return p
}

// Parse classifies text. Unrecognized input yields KindUnrecognized and no
// error; a matched family with bad captures yields a classified error.
func (p *Parser) Parse(text string) (Intent, error) {
	text = strings.TrimSpace(text)
	for _, pat := range p.patterns {
		if m := pat.re.FindStringSubmatch(text); m != nil {
			return pat.build(p, m)
		}
	}
	return Intent{Kind: KindUnrecognized}, nil
}

func fixed(kind Kind) func(*Parser, []string) (Intent, error) {
	return func(*Parser, []string) (Intent, error) {
		return Intent{Kind: kind}, nil
	}
}

func buildSend(p *Parser, m []string) (Intent, error) {
	amount, token, err := p.normalizeMoney(m[1], m[2])
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Kind:      KindSend,
		Amount:    amount,
		Token:     token,
		Recipient: m[3],
		Message:   strings.TrimSpace(m[4]),
	}, nil
}

func buildRequest(p *Parser, m []string) (Intent, error) {
	amount, token, err := p.normalizeMoney(m[1], m[2])
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Kind:      KindRequest,
		Amount:    amount,
		Token:     token,
		Recipient: m[3],
		Message:   strings.TrimSpace(m[4]),
	}, nil
}

func buildSplit(p *Parser, m []string) (Intent, error) {
	amount, token, err := p.normalizeMoney(m[1], m[2])
	if err != nil {
		return Intent{}, err
	}
	recipients := strings.Fields(m[3])
	if len(recipients) == 0 {
		return Intent{}, apperrors.InvalidInputError(nil,
			"Tell me who to split with, e.g. \"Split 30 PC between @bob @carol\"")
	}
	return Intent{
		Kind:       KindSplit,
		Amount:     amount,
		Token:      token,
		Recipients: recipients,
	}, nil
}

func buildPrice(p *Parser, m []string) (Intent, error) {
	token := strings.ToUpper(strings.TrimSpace(m[1]))
	if token == "" {
		token = p.native
	}
	if !p.supported[token] {
		return Intent{}, apperrors.UnsupportedTokenError(nil,
			"Token "+token+" is not supported. Supported tokens: "+p.supportedList())
	}
	return Intent{Kind: KindPrice, Token: token}, nil
}

// normalizeMoney parses the captured amount and token symbol. Amounts must be
// positive decimals; token symbols are upper-cased and checked against the
// supported set, defaulting to the native token when absent.
func (p *Parser) normalizeMoney(rawAmount, rawToken string) (decimal.Decimal, string, error) {
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return decimal.Zero, "", apperrors.InvalidInputError(err,
			"I couldn't read that amount. Use a positive number like 5 or 2.50")
	}
	if !amount.IsPositive() {
		return decimal.Zero, "", apperrors.InvalidInputError(nil,
			"Amount must be greater than zero")
	}

	token := strings.ToUpper(strings.TrimSpace(rawToken))
	if token == "" {
		token = p.native
	}
	if !p.supported[token] {
		return decimal.Zero, "", apperrors.UnsupportedTokenError(nil,
			"Token "+token+" is not supported. Supported tokens: "+p.supportedList())
	}
	return amount, token, nil
}

func (p *Parser) supportedList() string {
	out := make([]string, 0, len(p.supported))
	if p.native != "" {
		out = append(out, p.native)
	}
	for t := range p.supported {
		if t != p.native {
			out = append(out, t)
		}
	}
	return strings.Join(out, ", ")
}
