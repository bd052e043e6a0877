package sql

import "testing"

func TestEnsureLimit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{
			name:  "appends missing limit",
			input: "SELECT * FROM vw_vendas",
			max:   500,
			want:  "SELECT * FROM vw_vendas LIMIT 500",
		},
		{
			name:  "appends before trailing semicolon",
			input: "SELECT * FROM vw_vendas;",
			max:   500,
			want:  "SELECT * FROM vw_vendas LIMIT 500;",
		},
		{
			name:  "clamps oversized limit",
			input: "SELECT * FROM vw_vendas LIMIT 10000",
			max:   500,
			want:  "SELECT * FROM vw_vendas LIMIT 500",
		},
		{
			name:  "never raises caller limit",
			input: "SELECT * FROM vw_vendas LIMIT 10",
			max:   500,
			want:  "SELECT * FROM vw_vendas LIMIT 10",
		},
		{
			name:  "limit at exactly max is untouched",
			input: "SELECT * FROM vw_vendas LIMIT 500",
			max:   500,
			want:  "SELECT * FROM vw_vendas LIMIT 500",
		},
		{
			name:  "lowercase limit clause",
			input: "select * from vw_vendas limit 900",
			max:   500,
			want:  "select * from vw_vendas LIMIT 500",
		},
		{
			name:  "zero max falls back to default",
			input: "SELECT * FROM vw_vendas",
			max:   0,
			want:  "SELECT * FROM vw_vendas LIMIT 500",
		},
		{
			name:  "inner clamp never raises outer limit",
			input: "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 1000) x LIMIT 10",
			max:   500,
			want:  "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 500) x LIMIT 10",
		},
		{
			name:  "oversized outer limit clamped alongside inner",
			input: "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 10) x LIMIT 9999",
			max:   500,
			want:  "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 10) x LIMIT 500",
		},
		{
			name:  "subquery-only limit gains a top-level clause",
			input: "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 9000) x",
			max:   500,
			want:  "SELECT * FROM (SELECT * FROM vw_vendas LIMIT 500) x LIMIT 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureLimit(tt.input, tt.max); got != tt.want {
				t.Errorf("EnsureLimit(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestEnsureLimit_Idempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM vw_vendas",
		"SELECT * FROM vw_vendas LIMIT 10000",
		"SELECT * FROM vw_vendas LIMIT 50;",
		"SELECT * FROM (SELECT * FROM vw_vendas LIMIT 1000) x LIMIT 10",
	}

	for _, input := range inputs {
		once := EnsureLimit(input, 500)
		twice := EnsureLimit(once, 500)
		if once != twice {
			t.Errorf("EnsureLimit not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}
