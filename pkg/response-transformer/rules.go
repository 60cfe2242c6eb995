// Package responsetransformer sets caching headers on origin responses,
// so that a proxy can store responses of servers that send none.
package responsetransformer

import (
	"net/http"
	"strings"
)

type Rules []Rule

// Rule matches GET requests. Empty match fields match anything.
type Rule struct {
	// Path prefix, e.g. /baseR4/
	Prefix string `yaml:"prefix"`
	// Exact path, e.g. /baseR4/Patient
	Path string `yaml:"path"`
	// Query parameters that must be present. An empty value matches any value.
	Query map[string]string `yaml:"query"`
	// Cache-Control to set if the response has none.
	Default string `yaml:"default"`
	// Cache-Control to set regardless of the response.
	Override string `yaml:"override"`
	// Other headers to set.
	Headers map[string]string `yaml:"headers"`
}

// Apply applies the first matching rule to a successful response.
// The response must carry its request.
func (r Rules) Apply(res *http.Response) error {
	if res.StatusCode != http.StatusOK || res.Request == nil {
		return nil
	}
	if rule := r.find(res.Request); rule != nil {
		applyRuleToResponse(*rule, res)
	}
	return nil
}

func applyRuleToResponse(rule Rule, res *http.Response) {
	if rule.Override != "" {
		res.Header.Set("Cache-Control", rule.Override)
	} else if rule.Default != "" && res.Header.Get("Cache-Control") == "" {
		res.Header.Set("Cache-Control", rule.Default)
	}
	for name, value := range rule.Headers {
		res.Header.Set(name, value)
	}
}

func (r Rules) find(req *http.Request) *Rule {
	if req.Method != http.MethodGet {
		return nil
	}
rulesLoop:
	for i, rule := range r {
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		qry := req.URL.Query()
		for name, value := range rule.Query {
			if !qry.Has(name) || (value != "" && qry.Get(name) != value) {
				continue rulesLoop
			}
		}
		return &r[i]
	}
	return nil
}
