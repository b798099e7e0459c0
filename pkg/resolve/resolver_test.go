package resolve

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/payments"
)

type mockDirectory struct {
	UserByHandleFunc     func(ctx context.Context, handle string) (*payments.User, error)
	UserByPhoneFunc      func(ctx context.Context, phone string) (*payments.User, error)
	UserByPlatformIDFunc func(ctx context.Context, platformID int64) (*payments.User, error)
	ListUsersFunc        func(ctx context.Context) ([]*payments.User, error)
}

func (m *mockDirectory) UserByHandle(ctx context.Context, handle string) (*payments.User, error) {
	if m.UserByHandleFunc != nil {
		return m.UserByHandleFunc(ctx, handle)
	}
	return nil, nil
}

func (m *mockDirectory) UserByPhone(ctx context.Context, phone string) (*payments.User, error) {
	if m.UserByPhoneFunc != nil {
		return m.UserByPhoneFunc(ctx, phone)
	}
	return nil, nil
}

func (m *mockDirectory) UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error) {
	if m.UserByPlatformIDFunc != nil {
		return m.UserByPlatformIDFunc(ctx, platformID)
	}
	return nil, nil
}

func (m *mockDirectory) ListUsers(ctx context.Context) ([]*payments.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return nil, nil
}

// directoryOf builds a mock over a fixed user set with exact-match semantics.
func directoryOf(users ...*payments.User) *mockDirectory {
	return &mockDirectory{
		UserByHandleFunc: func(_ context.Context, handle string) (*payments.User, error) {
			for _, u := range users {
				if strings.EqualFold(u.Handle, handle) {
					return u, nil
				}
			}
			return nil, nil
		},
		UserByPhoneFunc: func(_ context.Context, phone string) (*payments.User, error) {
			for _, u := range users {
				if u.Phone != "" && u.Phone == phone {
					return u, nil
				}
			}
			return nil, nil
		},
		UserByPlatformIDFunc: func(_ context.Context, id int64) (*payments.User, error) {
			for _, u := range users {
				if u.PlatformID == id {
					return u, nil
				}
			}
			return nil, nil
		},
		ListUsersFunc: func(context.Context) ([]*payments.User, error) {
			return users, nil
		},
	}
}

var (
	alice = &payments.User{
		ID: 1, PlatformID: 111111, Handle: "alice",
		Phone:         "+15551234567",
		WalletAddress: "0x1111111111111111111111111111111111111111",
	}
	bob = &payments.User{
		ID: 2, PlatformID: 7778889990, Handle: "bob",
		WalletAddress: "0x2222222222222222222222222222222222222222",
	}
)

func TestResolve_LiteralAddress(t *testing.T) {
	r := NewResolver(directoryOf(), nil, nil)

	addr := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	res, err := r.Resolve(context.Background(), addr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Address != addr {
		t.Errorf("address = %s, want %s", res.Address, addr)
	}
	if res.User != nil {
		t.Error("expected no user for a literal address")
	}
}

func TestResolve_Handle(t *testing.T) {
	r := NewResolver(directoryOf(alice), nil, nil)

	for _, token := range []string{"@alice", "alice", "@ALICE"} {
		res, err := r.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", token, err)
		}
		if res.User != alice {
			t.Errorf("Resolve(%q): wrong user", token)
		}
		if res.DisplayName != "@alice" {
			t.Errorf("Resolve(%q): display = %s, want @alice", token, res.DisplayName)
		}
	}
}

func TestResolve_PhoneAndVariants(t *testing.T) {
	r := NewResolver(directoryOf(alice), nil, nil)

	// Exact phone, then the same number without the plus via the variant step.
	for _, token := range []string{"+15551234567", "15551234567"} {
		res, err := r.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", token, err)
		}
		if res.User != alice {
			t.Errorf("Resolve(%q): wrong user", token)
		}
	}
}

func TestResolve_PlatformID(t *testing.T) {
	r := NewResolver(directoryOf(bob), nil, nil)

	res, err := r.Resolve(context.Background(), strconv.FormatInt(bob.PlatformID, 10))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.User != bob {
		t.Error("wrong user")
	}
}

func TestResolve_FuzzyNumeric(t *testing.T) {
	r := NewResolver(directoryOf(alice), nil, nil)

	// National format without country code: matched by last-10 comparison.
	res, err := r.Resolve(context.Background(), "5551234567")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.User != alice {
		t.Error("wrong user")
	}

	// Formatted rendering of the same number.
	res, err = r.Resolve(context.Background(), "(555) 123-4567")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.User != alice {
		t.Error("wrong user")
	}
}

func TestResolve_OverridesWin(t *testing.T) {
	override := "0x9999999999999999999999999999999999999999"
	r := NewResolver(directoryOf(alice), map[string]string{"@alice": override}, nil)

	res, err := r.Resolve(context.Background(), "@alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Address != override {
		t.Errorf("address = %s, want override", res.Address)
	}
}

func TestResolve_Contacts(t *testing.T) {
	r := NewResolver(directoryOf(bob), nil, map[string]string{"landlord": "@bob"})

	res, err := r.Resolve(context.Background(), "Landlord")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.User != bob {
		t.Error("wrong user")
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(directoryOf(alice), nil, nil)

	_, err := r.Resolve(context.Background(), "@nobody")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryNotFound) {
		t.Errorf("category = %v, want not found", err)
	}
	if !strings.Contains(apperrors.UserMessage(err), SupportedFormats) {
		t.Error("not-found message should list supported formats")
	}
}

// The chain short-circuits: an exact handle match must never fall through to
// the fuzzy step even when the fuzzy step would also match.
func TestResolve_Deterministic(t *testing.T) {
	listCalled := false
	dir := directoryOf(alice, bob)
	dir.ListUsersFunc = func(context.Context) ([]*payments.User, error) {
		listCalled = true
		return []*payments.User{alice, bob}, nil
	}
	r := NewResolver(dir, nil, nil)

	for i := 0; i < 5; i++ {
		res, err := r.Resolve(context.Background(), "@bob")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.User != bob {
			t.Fatal("wrong user")
		}
	}
	if listCalled {
		t.Error("exact handle match must not reach the fuzzy step")
	}
}

func TestResolve_DirectoryError(t *testing.T) {
	dir := &mockDirectory{
		UserByHandleFunc: func(context.Context, string) (*payments.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	r := NewResolver(dir, nil, nil)

	_, err := r.Resolve(context.Background(), "@alice")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
