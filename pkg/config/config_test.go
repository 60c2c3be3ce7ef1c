package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("DB_LOCK_TIMEOUT", "750ms")
	t.Setenv("FINANCE_DEFAULT_TAX_RATE", "0.12")
	t.Setenv("FINANCE_PAYMENT_TERMS_DAYS", "не число")

	cfg := New()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.Postgres.LockTimeout)
	assert.True(t, decimal.RequireFromString("0.12").Equal(cfg.Finance.DefaultTaxRate))
	assert.Equal(t, 30, cfg.Finance.PaymentTermsDays, "некорректное значение заменяется значением по умолчанию")
}
