package pack

// Chain tries resolvers in order and returns the first answer.
type Chain struct {
	resolvers    []Resolver
	unrecognized bool
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithUnrecognizedFallback makes the chain answer [Unrecognized] instead of
// "not found" when no resolver knows a path.
func WithUnrecognizedFallback() ChainOption {
	return func(c *Chain) { c.unrecognized = true }
}

// NewChain returns a chain over resolvers.
func NewChain(resolvers []Resolver, opts ...ChainOption) *Chain {
	c := &Chain{resolvers: resolvers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve stops at the first resolver that knows the path or reports an
// error.
func (c *Chain) Resolve(importPath string) (Package, bool, error) {
	for _, r := range c.resolvers {
		pkg, ok, err := r.Resolve(importPath)
		if err != nil {
			return Package{}, false, err
		}
		if ok {
			return pkg, true, nil
		}
	}
	if c.unrecognized {
		return Unrecognized(importPath), true, nil
	}
	return Package{}, false, nil
}
