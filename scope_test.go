package oauthkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeScopes(t *testing.T) {
	tests := []struct {
		name   string
		sep    string
		scopes []string
		want   string
	}{
		{"empty", " ", nil, ""},
		{"default only", " ", []string{"openid email", ""}, "openid email"},
		{"dedupes case insensitively", " ", []string{"openid Email", "email profile"}, "openid Email profile"},
		{"comma separator", ",", []string{"read,write", "Write,admin"}, "read,write,admin"},
		{"empty separator means space", "", []string{"a", "b a"}, "a b"},
		{"trims blanks", ",", []string{"a, b,", " c"}, "a,b,c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeScopes(tt.sep, tt.scopes...))
		})
	}
}

func TestSplitScope(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitScope("a  b", " "))
	assert.Equal(t, []string{"a", "b"}, SplitScope("a,b", ","))
	assert.Nil(t, SplitScope("", ","))
}

func TestClientName(t *testing.T) {
	assert.Equal(t, "github", Name("github").String())
	assert.Equal(t, "popup/github", ClientName{Group: "popup", Provider: "github"}.String())
	assert.Equal(t, ClientName{Group: "popup", Provider: "github"}, ParseClientName("popup/github"))
	assert.Equal(t, Name("github"), ParseClientName("github"))
}

func TestNewState(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := NewState()
		assert.Len(t, s, 43)
		assert.False(t, seen[s])
		seen[s] = true
	}
}
