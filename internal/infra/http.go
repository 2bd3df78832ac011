package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type agentResult struct {
	code int
	body []byte
	errs []error
}

// Send executes a prepared fiber client agent while honouring ctx. Fiber agents do
// not take a context, so a cancelled ctx abandons the request and its result is
// dropped when it eventually completes.
func Send(ctx context.Context, agent *fiber.Agent) (int, []byte, error) {
	done := make(chan agentResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- agentResult{code: code, body: body, errs: errs}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case res := <-done:
		if len(res.errs) > 0 {
			return res.code, res.body, fmt.Errorf("http request: %w", errors.Join(res.errs...))
		}
		return res.code, res.body, nil
	}
}
