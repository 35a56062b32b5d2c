package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClient(t *testing.T) {
	tests := []struct {
		name       string
		clientInfo string
		ua         string
		want       Client
	}{
		{
			name:       "go sdk",
			clientInfo: "alawein-go/1.0",
			ua:         "Go-http-client/1.1",
			want:       Client{Kind: "sdk", Name: "alawein-go", Version: "1.0"},
		},
		{
			name: "cli",
			ua:   "alaweinctl/0.3.1 (linux)",
			want: Client{Kind: "cli", Name: "alaweinctl", Version: "0.3.1"},
		},
		{
			name: "curl",
			ua:   "curl/8.4.0",
			want: Client{Kind: "tool", Name: "curl", Version: "8.4.0"},
		},
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			want: Client{Kind: "browser", Name: "Chrome", OS: "Windows"},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile Safari/604.1",
			want: Client{Kind: "browser", Name: "Safari", OS: "iOS"},
		},
		{
			name: "edge",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0 Safari/537.36 Edg/120.0",
			want: Client{Kind: "browser", Name: "Edge", OS: "macOS"},
		},
		{
			name: "empty",
			want: Client{Kind: "unknown", Name: "unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClient(tt.clientInfo, tt.ua))
		})
	}
}
