// Package resolve maps free-form recipient tokens to wallet addresses.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/payments"
)

// SupportedFormats is surfaced to users when every resolution step fails.
const SupportedFormats = "a wallet address (0x...), @handle, phone number, or platform user ID"

var reAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Resolved is the outcome of a successful resolution. User is nil when the
// token was a literal address or a static override with no registered user.
type Resolved struct {
	Address     string
	User        *payments.User
	DisplayName string
}

// Directory is the read-only user lookup surface the resolver consults.
// Implementations return (nil, nil) when no user matches.
type Directory interface {
	UserByHandle(ctx context.Context, handle string) (*payments.User, error)
	UserByPhone(ctx context.Context, phone string) (*payments.User, error)
	UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error)
	ListUsers(ctx context.Context) ([]*payments.User, error)
}

// Resolver resolves recipient tokens through a strict priority chain,
// short-circuiting on the first step that succeeds. Every step is
// deterministic and side-effect-free.
type Resolver struct {
	dir Directory

	// overrides are operator-curated token -> address mappings, checked first.
	overrides map[string]string
	// contacts is a small static name -> handle/address table, checked last.
	contacts map[string]string
}

// NewResolver creates a resolver over the given directory. Both maps may be nil.
func NewResolver(dir Directory, overrides, contacts map[string]string) *Resolver {
	return &Resolver{dir: dir, overrides: lowerKeys(overrides), contacts: lowerKeys(contacts)}
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Resolve maps a recipient token to a wallet address. The chain:
// overrides, literal address, handle, phone, platform ID, format variants,
// fuzzy numeric match, static contacts.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Resolved, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, r.notFound(token)
	}

	// 1. Operator overrides win over everything.
	if addr, ok := r.overrides[strings.ToLower(token)]; ok {
		return &Resolved{Address: addr, DisplayName: token}, nil
	}

	// 2. Literal address syntax is returned as-is; on-chain validity is the
	// caller's concern.
	if reAddress.MatchString(token) {
		return &Resolved{Address: token, DisplayName: shortAddress(token)}, nil
	}

	// 3-5. Exact lookups.
	if res, err := r.lookupExact(ctx, token); err != nil || res != nil {
		return res, err
	}

	// 6. Format variants: the same identifier with or without a leading plus
	// sign or platform prefix.
	for _, v := range variants(token) {
		if res, err := r.lookupExact(ctx, v); err != nil || res != nil {
			return res, err
		}
	}

	// 7. Fuzzy numeric match over all known users' numeric identifiers.
	if res, err := r.fuzzyNumeric(ctx, token); err != nil || res != nil {
		return res, err
	}

	// 8. Static contact table.
	if target, ok := r.contacts[strings.ToLower(token)]; ok {
		if reAddress.MatchString(target) {
			return &Resolved{Address: target, DisplayName: token}, nil
		}
		if res, err := r.lookupExact(ctx, target); err != nil || res != nil {
			return res, err
		}
	}

	return nil, r.notFound(token)
}

func (r *Resolver) lookupExact(ctx context.Context, token string) (*Resolved, error) {
	// Handle, case-insensitive; a leading @ is stripped.
	handle := strings.ToLower(strings.TrimPrefix(token, "@"))
	usr, err := r.dir.UserByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("handle lookup: %w", err)
	}
	if usr == nil {
		usr, err = r.dir.UserByPhone(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("phone lookup: %w", err)
		}
	}
	if usr == nil {
		if id, convErr := strconv.ParseInt(token, 10, 64); convErr == nil {
			usr, err = r.dir.UserByPlatformID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("platform ID lookup: %w", err)
			}
		}
	}
	if usr == nil {
		return nil, nil
	}
	return toResolved(usr), nil
}

// variants generates normalized renderings of a numeric-looking identifier.
func variants(token string) []string {
	var out []string
	if strings.HasPrefix(token, "+") {
		out = append(out, strings.TrimPrefix(token, "+"))
	} else if allDigits(token) {
		out = append(out, "+"+token)
	}
	if strings.HasPrefix(token, "tg:") {
		out = append(out, strings.TrimPrefix(token, "tg:"))
	} else {
		out = append(out, "tg:"+token)
	}
	return out
}

// fuzzyNumeric matches the token's digit string against every known user's
// phone number and platform ID: exact equality, substring containment for
// digit strings of length >= 7, or equality of the last 10 digits (tolerates
// differing country-code prefixes).
func (r *Resolver) fuzzyNumeric(ctx context.Context, token string) (*Resolved, error) {
	digits := digitsOf(token)
	if digits == "" {
		return nil, nil
	}

	users, err := r.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	for _, usr := range users {
		for _, candidate := range []string{digitsOf(usr.Phone), strconv.FormatInt(usr.PlatformID, 10)} {
			if candidate == "" {
				continue
			}
			if digits == candidate {
				return toResolved(usr), nil
			}
			if len(digits) >= 7 && strings.Contains(candidate, digits) {
				return toResolved(usr), nil
			}
			if last10(digits) != "" && last10(digits) == last10(candidate) {
				return toResolved(usr), nil
			}
		}
	}
	return nil, nil
}

func (r *Resolver) notFound(token string) error {
	return apperrors.NotFoundError(
		fmt.Errorf("recipient %q did not resolve", token),
		"I couldn't find that recipient. You can use "+SupportedFormats+".",
	)
}

func toResolved(usr *payments.User) *Resolved {
	name := usr.Handle
	if name != "" {
		name = "@" + name
	} else {
		name = shortAddress(usr.WalletAddress)
	}
	return &Resolved{Address: usr.WalletAddress, User: usr, DisplayName: name}
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-4:]
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}

func last10(digits string) string {
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}
