package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const socialQuery = "data.identity.social.allow"

// Default Rego policy: any provider when the allowlist is empty, otherwise only listed ones.
// Any non-empty link type is admitted; a SOCIAL_POLICY_FILE module can narrow it.
const defaultRegoPolicy = `package identity.social

default allow := false

allow if {
	provider_permitted
	input.type != ""
}

provider_permitted if {
	count(input.allowed_providers) == 0
}

provider_permitted if {
	input.allowed_providers[_] == input.provider
}
`

// OPAEvaluator evaluates the social admission policy using OPA Rego.
type OPAEvaluator struct {
	query   rego.PreparedEvalQuery
	allowed []any
}

// NewOPAEvaluator compiles module (the default policy when empty) and prepares the allow query.
// allowed is the provider allowlist handed to the policy as input.allowed_providers.
func NewOPAEvaluator(ctx context.Context, module string, allowed []string) (*OPAEvaluator, error) {
	if strings.TrimSpace(module) == "" {
		module = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"social.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile social policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(socialQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare social policy: %w", err)
	}
	list := make([]any, 0, len(allowed))
	for _, p := range allowed {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			list = append(list, p)
		}
	}
	return &OPAEvaluator{query: q, allowed: list}, nil
}

// NewOPAEvaluatorFromFile reads a Rego module from path. An empty path selects the default policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, allowed []string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "", allowed)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read social policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b), allowed)
}

// AllowSocial evaluates the prepared policy. A result that is missing or not a boolean is an error.
func (e *OPAEvaluator) AllowSocial(ctx context.Context, in SocialInput) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"provider":          in.Provider,
		"type":              in.Type,
		"device":            int(in.Device),
		"allowed_providers": e.allowed,
	}))
	if err != nil {
		return false, fmt.Errorf("eval social policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("social policy returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("social policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allow, nil
}

// HealthCheck evaluates the active policy against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.AllowSocial(ctx, SocialInput{Provider: "health", Type: "oauth", Device: 10})
	return err
}
