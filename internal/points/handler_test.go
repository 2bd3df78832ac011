package points

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/identity"
)

type stubProfiles map[string]identity.Identity

func (p stubProfiles) Lookup(_ context.Context, address string) (identity.Identity, bool, error) {
	ident, ok := p[address]
	return ident, ok, nil
}

func TestHandlerReturnsPointsWithReferralLink(t *testing.T) {
	agg, dir, repo := newTestAggregator(t)
	dir.add("acct-a", "")
	upsert(t, repo, "acct-a", `{"deposit_usd_days": 7}`)
	profiles := stubProfiles{"acct-a": {Address: "acct-a", ReferralCode: "K7PQ2M"}}

	app := fiber.New()
	app.Get("/points/:address", NewHandler(agg, profiles, "https://example.com/refer/").Get)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/points/acct-a", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalPoints != 7 || body.Rank != 1 {
		t.Fatalf("unexpected record: %+v", body.Record)
	}
	if body.ReferralLink != "https://example.com/refer/K7PQ2M" || body.IsCustomReferralLink {
		t.Fatalf("unexpected referral fields: %+v", body)
	}
}

func TestHandlerUnknownAddressGetsDefaultRecord(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	app := fiber.New()
	app.Get("/points/:address", NewHandler(agg, stubProfiles{}, "").Get)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/points/nobody", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Address != "nobody" || body.TotalPoints != 0 || body.Rank != 0 || body.ReferralCode != "" {
		t.Fatalf("expected zeroed record, got %+v", body)
	}
}
