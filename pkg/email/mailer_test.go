package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaaliwebdev/sello/pkg/config"
	"github.com/razaaliwebdev/sello/pkg/email"
)

func TestConfigLoadsWithoutAddresses(t *testing.T) {
	// A token-less dev environment runs with the DevSender and must start
	// without sender or support addresses set.
	t.Setenv("SENDER_EMAIL", "")
	t.Setenv("SUPPORT_EMAIL", "")

	var cfg email.Config
	require.NoError(t, config.Load(&cfg))

	assert.Empty(t, cfg.SenderEmail)
	assert.Empty(t, cfg.SupportEmail)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "./tmp/emails", cfg.DevOutputDir)
}

func TestPostmarkClientValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  email.Config
	}{
		{
			name: "missing server token",
			cfg: email.Config{
				PostmarkAccountToken: "acct",
				SenderEmail:          "noreply@example.com",
				SupportEmail:         "support@example.com",
			},
		},
		{
			name: "missing sender address",
			cfg: email.Config{
				PostmarkServerToken:  "srv",
				PostmarkAccountToken: "acct",
				SupportEmail:         "support@example.com",
			},
		},
		{
			name: "missing support address",
			cfg: email.Config{
				PostmarkServerToken:  "srv",
				PostmarkAccountToken: "acct",
				SenderEmail:          "noreply@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := email.NewPostmarkClient(tt.cfg)
			require.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}
