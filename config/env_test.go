package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Fallback(t *testing.T) {
	assert.Equal(t, "fb", Get("CONFIG_TEST_MISSING", "fb"))
}

func TestGet_EnvironmentVariable(t *testing.T) {
	t.Setenv("CONFIG_TEST_FROM_ENV", "yes")
	assert.Equal(t, "yes", Get("CONFIG_TEST_FROM_ENV", "no"))
}

func TestSet_Overrides(t *testing.T) {
	Set("CONFIG_TEST_SET", "value")
	assert.Equal(t, "value", Get("CONFIG_TEST_SET", ""))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "eur", CheckoutCurrency())
	assert.Equal(t, "https://api.stripe.com", StripeAPIBase())
}

func TestAdminIDs(t *testing.T) {
	Set("ADMIN_IDS", "1, 2,x,0,9")
	defer Set("ADMIN_IDS", "1,2")
	assert.Equal(t, []uint{1, 2, 9}, AdminIDs())
}

func TestTypedAccessors(t *testing.T) {
	Set("CONFIG_TEST_BOOL", "true")
	Set("CONFIG_TEST_INT", "42")
	Set("CONFIG_TEST_DUR", "90m")
	Set("CONFIG_TEST_BAD", "nope")

	assert.True(t, Bool("CONFIG_TEST_BOOL", false))
	assert.True(t, Bool("CONFIG_TEST_BAD", true))
	assert.Equal(t, 42, Int("CONFIG_TEST_INT", 0))
	assert.Equal(t, 3, Int("CONFIG_TEST_BAD", 3))
	assert.Equal(t, 90*time.Minute, Duration("CONFIG_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, Duration("CONFIG_TEST_BAD", time.Second))
}

func TestDatabaseDriver_UnknownFallsBackToSQLite(t *testing.T) {
	Set("DB_DRIVER", "oracle")
	defer Set("DB_DRIVER", "sqlite")
	assert.Equal(t, "sqlite", DatabaseDriver())
	assert.Equal(t, "farm.db", DatabaseDSN())
}

func TestCheckoutKey_TrimsSlashes(t *testing.T) {
	Set("CHECKOUT_KEY", "/secret-path/")
	defer Set("CHECKOUT_KEY", "payment-complete")
	assert.Equal(t, "secret-path", CheckoutKey())
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"CONFIG_FILE_A":"json","CONFIG_FILE_B":"json"}`), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte("CONFIG_FILE_B=dotenv\n"), 0o644))

	require.NoError(t, loadFromFiles(jsonPath, envPath))

	assert.Equal(t, "json", get("CONFIG_FILE_A", ""))
	assert.Equal(t, "dotenv", get("CONFIG_FILE_B", ""))
}

func TestLoadFromFiles_MissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadFromFiles(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope.env")))
}
