package authproof

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"

	"github.com/mrgn-points/points_api/internal/infra"
)

const defaultRPCTimeout = 5 * time.Second

// RPCAnchorSource reads anchors from a JSON-RPC ledger node exposing
// getLatestBlockhash and getBlockHeight.
type RPCAnchorSource struct {
	url        string
	timeout    time.Duration
	commitment string
}

// NewRPCAnchorSource builds an anchor source for the node at url.
func NewRPCAnchorSource(url string) *RPCAnchorSource {
	return &RPCAnchorSource{url: url, timeout: defaultRPCTimeout, commitment: "finalized"}
}

// Latest implements AnchorSource.
func (s *RPCAnchorSource) Latest(ctx context.Context) (Anchor, error) {
	res, err := s.call(ctx, "getLatestBlockhash", map[string]string{"commitment": s.commitment})
	if err != nil {
		return Anchor{}, err
	}
	blockhash := res.Get("value.blockhash").String()
	if blockhash == "" {
		return Anchor{}, fmt.Errorf("getLatestBlockhash: empty blockhash")
	}
	height, err := s.BlockHeight(ctx)
	if err != nil {
		return Anchor{}, err
	}
	return Anchor{Blockhash: blockhash, Height: height}, nil
}

// BlockHeight implements AnchorSource.
func (s *RPCAnchorSource) BlockHeight(ctx context.Context) (uint64, error) {
	res, err := s.call(ctx, "getBlockHeight", map[string]string{"commitment": s.commitment})
	if err != nil {
		return 0, err
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("getBlockHeight: unexpected result %q", res.Raw)
	}
	return res.Uint(), nil
}

func (s *RPCAnchorSource) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if len(params) > 0 {
		payload["params"] = params
	}

	agent := fiber.Post(s.url).JSON(payload).Timeout(s.timeout)
	code, body, err := infra.Send(ctx, agent)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}
	if code != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%s: unexpected status %d", method, code)
	}
	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return gjson.Result{}, fmt.Errorf("%s: rpc error %d: %s", method, rpcErr.Get("code").Int(), rpcErr.Get("message").String())
	}
	return gjson.GetBytes(body, "result"), nil
}
