package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_File(t *testing.T) {
	dir := writeConfig(t, `
TELEGRAM_BOT_TOKEN: "123:abc"
DIRECTORY_URL: "https://directory.example.com"
PAYMENT_ADDRESS: "zs1dir"
PAYMENT_AMOUNT: "0.25"
LOG_LEVEL: "debug"
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.Equal(t, "https://directory.example.com", cfg.DirectoryURL)
	assert.Equal(t, "zs1dir", cfg.PaymentAddress)
	assert.Equal(t, "zcash", cfg.PaymentScheme, "Scheme defaults to zcash")
	assert.Equal(t, "./badger_data", cfg.BadgerDBPath)
	assert.Equal(t, 256, cfg.ProfileCacheSize)
	assert.False(t, cfg.LinkPreviews)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())

	amount, err := cfg.Amount()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.25").Equal(amount))
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
TELEGRAM_BOT_TOKEN: "from-file"
DIRECTORY_URL: "https://directory.example.com"
PAYMENT_ADDRESS: "zs1dir"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("PROFILE_CACHE_SIZE", "16")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TelegramBotToken)
	assert.Equal(t, 16, cfg.ProfileCacheSize)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DIRECTORY_URL", "https://directory.example.com")
	t.Setenv("PAYMENT_ADDRESS", "zs1dir")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err, "A missing config file is not an error")
	assert.Equal(t, "zs1dir", cfg.PaymentAddress)

	amount, err := cfg.Amount()
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing_token",
			body: "DIRECTORY_URL: \"https://d\"\nPAYMENT_ADDRESS: \"zs1\"\n",
		},
		{
			name: "missing_directory",
			body: "TELEGRAM_BOT_TOKEN: \"t\"\nPAYMENT_ADDRESS: \"zs1\"\n",
		},
		{
			name: "missing_address",
			body: "TELEGRAM_BOT_TOKEN: \"t\"\nDIRECTORY_URL: \"https://d\"\n",
		},
		{
			name: "negative_amount",
			body: "TELEGRAM_BOT_TOKEN: \"t\"\nDIRECTORY_URL: \"https://d\"\nPAYMENT_ADDRESS: \"zs1\"\nPAYMENT_AMOUNT: \"-1\"\n",
		},
		{
			name: "bad_amount",
			body: "TELEGRAM_BOT_TOKEN: \"t\"\nDIRECTORY_URL: \"https://d\"\nPAYMENT_ADDRESS: \"zs1\"\nPAYMENT_AMOUNT: \"lots\"\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, test.body))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Level(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, Config{LogLevel: "warn"}.Level())
	assert.Equal(t, logrus.InfoLevel, Config{LogLevel: "loud"}.Level())
}
