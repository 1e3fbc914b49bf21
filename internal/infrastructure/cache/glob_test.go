package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"expenses:org1:*", "expenses:org1:list", true},
		{"expenses:org1:*", "expenses:org1:", true},
		{"expenses:org1:*", "expenses:org2:list", false},
		{"expenses:org1:*", "vendors:org1:list", false},
		{"*:org1:*", "vendors:org1:a/b c", true},
		{"*:org1:*", "vendors:org10:x", false},
		{"customer_search:org1:*", "customer_search:org1:jo*hn", true},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{`h\*llo`, "h*llo", true},
		{`h\*llo`, "hello", false},
		{"*", "", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.key), "%q ~ %q", tt.pattern, tt.key)
	}
}
