package evaluator

import (
	"testing"

	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
)

func TestInScope(t *testing.T) {
	res := &resource.Resource{
		ID:       "aws/ec2/i-001",
		Name:     "web-prod-01",
		Type:     resource.TypeCompute,
		Provider: resource.ProviderAWS,
		Tags:     map[string]string{"Environment": "production", "Team": "web"},
	}

	tests := []struct {
		name  string
		scope policy.Scope
		want  bool
	}{
		{name: "empty scope matches everything", scope: policy.Scope{}, want: true},
		{
			name:  "environment match",
			scope: policy.Scope{Environments: []string{"production", "staging"}},
			want:  true,
		},
		{
			name:  "environment miss",
			scope: policy.Scope{Environments: []string{"staging"}},
			want:  false,
		},
		{
			name:  "resource type miss",
			scope: policy.Scope{ResourceTypes: []string{resource.TypeVolume}},
			want:  false,
		},
		{
			name:  "provider match",
			scope: policy.Scope{Providers: []string{resource.ProviderAWS}},
			want:  true,
		},
		{
			name:  "tag exclusion wins over inclusion",
			scope: policy.Scope{Environments: []string{"production"}, Exclusions: []policy.Exclusion{{Tag: "Team=web"}}},
			want:  false,
		},
		{
			name:  "tag exclusion needs exact value",
			scope: policy.Scope{Exclusions: []policy.Exclusion{{Tag: "Team=data"}}},
			want:  true,
		},
		{
			name:  "name glob exclusion",
			scope: policy.Scope{Exclusions: []policy.Exclusion{{Name: "web-*"}}},
			want:  false,
		},
		{
			name:  "name glob is anchored",
			scope: policy.Scope{Exclusions: []policy.Exclusion{{Name: "prod-*"}}},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InScope(tt.scope, res); got != tt.want {
				t.Errorf("InScope() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"web-01", "web-01", true},
		{"web-01", "web-012", false},
		{"web-*", "web-01", true},
		{"web-*", "web-", true},
		{"*-prod", "db-prod", true},
		{"*-prod", "db-prod-replica", false},
		{"*", "anything", true},
		{"db-*-replica", "db-eu-replica", true},
		{"db-*-replica", "db-replica", false},
		{"Web-*", "web-01", false}, // case sensitive
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.name); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
