package generation

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches completions to the client registered for the provider.
type Router struct {
	completers map[string]Completer
}

func NewRouter() *Router {
	return &Router{completers: make(map[string]Completer)}
}

// Register binds provider (case-insensitive) to c and returns the router.
func (r *Router) Register(provider string, c Completer) *Router {
	r.completers[strings.ToLower(provider)] = c
	return r
}

func (r *Router) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c, ok := r.completers[strings.ToLower(req.Provider)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	return c.Complete(ctx, req)
}
