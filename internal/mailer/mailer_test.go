package mailer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loadxpress/loadxpress/internal/config"
	"github.com/loadxpress/loadxpress/internal/logger"
	"github.com/loadxpress/loadxpress/internal/mailer"
)

func TestUnconfiguredMailerIsNoOp(t *testing.T) {
	m := mailer.New(&config.EmailConfig{}, "https://loadxpress.example.com", logger.NewNop())

	// without SMTP settings dispatch is skipped, never an error
	assert.NoError(t, m.SendActivationEmail(context.Background(), "user@example.com", "token-1"))
	assert.NoError(t, m.SendOTPEmail(context.Background(), "user@example.com", "123456"))
}
