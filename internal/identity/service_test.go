package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mrgn-points/points_api/internal/authproof"
)

type stubReferrals struct {
	mu      sync.Mutex
	codes   []string
	applied []string
	err     error
}

func (s *stubReferrals) NewCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "FALLBK"
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code
}

func (s *stubReferrals) Apply(_ context.Context, identity Identity, code string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, code)
	if s.err != nil {
		return identity, s.err
	}
	identity.ReferredBy = "referrer-of-" + code
	return identity, nil
}

func verified(address string) authproof.VerifiedAccount {
	return authproof.VerifiedAccount{Address: address, Method: authproof.MethodMemo}
}

func TestSignupThenLogin(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	res, err := svc.Signup(ctx, verified("addr-1"), "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !res.Created || res.Identity.Address != "addr-1" || res.Identity.ReferralCode == "" {
		t.Fatalf("unexpected signup result: %+v", res)
	}
	if res.Identity.AuthMethod != string(authproof.MethodMemo) {
		t.Fatalf("expected auth method memo, got %s", res.Identity.AuthMethod)
	}

	logged, err := svc.Login(ctx, verified("addr-1"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != res.Identity.ID || logged.LastLogin == nil {
		t.Fatalf("unexpected login identity: %+v", logged)
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	if _, err := svc.Login(context.Background(), verified("ghost")); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	if _, ok, err := svc.Lookup(ctx, "addr-1"); err != nil || ok {
		t.Fatalf("expected no identity, got ok=%v err=%v", ok, err)
	}
	if _, err := svc.Signup(ctx, verified("addr-1"), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, ok, err := svc.Lookup(ctx, "addr-1"); err != nil || !ok {
		t.Fatalf("expected identity, got ok=%v err=%v", ok, err)
	}
}

func TestConcurrentSignupCreatesOneIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	const workers = 16
	results := make([]SignupResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Signup(ctx, verified("addr-race"), "")
			if err != nil {
				t.Errorf("signup %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		if res.Created {
			created++
		}
		if res.Identity.ID != results[0].Identity.ID {
			t.Fatalf("signups returned different identities: %s vs %s", res.Identity.ID, results[0].Identity.ID)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}
	all, _ := repo.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one persisted identity, got %d", len(all))
	}
}

func TestSignupRetriesReferralCodeCollision(t *testing.T) {
	refs := &stubReferrals{codes: []string{"AAAAAA", "AAAAAA", "BBBBBB"}}
	svc := NewService(NewMemoryRepository(), refs, nil)
	ctx := context.Background()

	first, err := svc.Signup(ctx, verified("addr-1"), "")
	if err != nil {
		t.Fatalf("first signup: %v", err)
	}
	second, err := svc.Signup(ctx, verified("addr-2"), "")
	if err != nil {
		t.Fatalf("second signup: %v", err)
	}
	if first.Identity.ReferralCode != "AAAAAA" || second.Identity.ReferralCode != "BBBBBB" {
		t.Fatalf("unexpected codes %s / %s", first.Identity.ReferralCode, second.Identity.ReferralCode)
	}
}

func TestSignupReferralFailureIsNonFatal(t *testing.T) {
	refErr := errors.New("invalid referral code")
	refs := &stubReferrals{err: refErr}
	svc := NewService(NewMemoryRepository(), refs, nil)

	res, err := svc.Signup(context.Background(), verified("addr-1"), "NOPE12")
	if err != nil {
		t.Fatalf("signup should succeed, got %v", err)
	}
	if !res.Created || !errors.Is(res.ReferralErr, refErr) {
		t.Fatalf("expected created identity with referral error, got %+v", res)
	}
	if res.Identity.HasReferrer() {
		t.Fatalf("referral should not be attached")
	}
}

func TestSignupAppliesReferral(t *testing.T) {
	refs := &stubReferrals{}
	svc := NewService(NewMemoryRepository(), refs, nil)

	res, err := svc.Signup(context.Background(), verified("addr-1"), "  ABC123 ")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Identity.ReferredBy != "referrer-of-ABC123" || res.ReferralErr != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}
