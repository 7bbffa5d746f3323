package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinc/internal/config"
	"autoinc/internal/core/apperror"
	"autoinc/internal/domain/auth"
	"autoinc/internal/infrastructure/counterstore"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	store *counterstore.MemoryStore
	cfg   *config.Config
	opens int
}

func newHarness() *harness {
	return &harness{
		store: counterstore.NewMemoryStore(),
		cfg: &config.Config{
			Store: config.StoreConfig{Backend: counterstore.BackendMemory, Timeout: time.Second},
			Auth:  config.AuthConfig{JWTSecret: testSecret, Issuer: "autoinc", TokenTTL: time.Hour},
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRoot(Options{
		Out:    &out,
		Config: func() (*config.Config, error) { return h.cfg, nil },
		Open: func(context.Context, *config.Config) (*counterstore.Handle, error) {
			h.opens++
			return &counterstore.Handle{Store: h.store}, nil
		},
	})
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestNextGetRaise(t *testing.T) {
	h := newHarness()

	for want := 1.0; want <= 3; want++ {
		out, err := h.run(t, "next", "orders")
		require.NoError(t, err)
		assert.Equal(t, want, decode(t, out)["value"])
	}

	out, err := h.run(t, "get", "orders")
	require.NoError(t, err)
	assert.Equal(t, 3.0, decode(t, out)["value"])

	out, err = h.run(t, "raise", "orders", "1000")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, decode(t, out)["value"])

	out, err = h.run(t, "raise", "orders", "5")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, decode(t, out)["value"])

	out, err = h.run(t, "next", "orders")
	require.NoError(t, err)
	assert.Equal(t, 1001.0, decode(t, out)["value"])
}

func TestGet_Missing(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "get", "nope")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRaise_InvalidValue(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, "raise", "orders", "ten")
	assert.Error(t, err)
	assert.Zero(t, h.opens, "store is not opened for bad input")

	_, err = h.run(t, "raise", "--", "orders", "-1")
	assert.True(t, apperror.IsAppError(err), "negative values are rejected by the store")
}

func TestList(t *testing.T) {
	h := newHarness()
	for _, id := range []string{"b", "a", "a2", "c"} {
		_, err := h.run(t, "next", id)
		require.NoError(t, err)
	}

	out, err := h.run(t, "list", "--prefix", "a")
	require.NoError(t, err)
	list := decode(t, out)
	assert.Equal(t, 2.0, list["count"])
	items := list["items"].([]any)
	assert.Equal(t, "a", items[0].(map[string]any)["counterId"])
	assert.Equal(t, "a2", items[1].(map[string]any)["counterId"])

	out, err = h.run(t, "list", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, decode(t, out)["count"])
}

func TestKey(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "key", "composed", "inhabitant", "country=France", "city=Paris")
	require.NoError(t, err)
	key := decode(t, out)
	assert.Equal(t, `inhabitant_counter["France","Paris"]`, key["counterId"])
	assert.Equal(t, "inhabitant_counter", key["counter"])

	out, err = h.run(t, "key", "main", "id")
	require.NoError(t, err)
	assert.Equal(t, "main_id", decode(t, out)["counterId"])

	_, err = h.run(t, "key", "composed", "inhabitant", "planet=Mars")
	assert.True(t, apperror.IsAppError(err), "unknown field")

	_, err = h.run(t, "key", "nope", "id")
	assert.Error(t, err)

	_, err = h.run(t, "key", "composed", "inhabitant", "country")
	assert.Error(t, err)
	assert.Zero(t, h.opens)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "France", parseValue("France"))
	assert.Equal(t, json.Number("42"), parseValue("42"))
	assert.Equal(t, true, parseValue("true"))
	assert.Nil(t, parseValue("null"))
	assert.Equal(t, "42", parseValue(`"42"`))
	assert.Equal(t, "[1]", parseValue("[1]"))
	assert.Equal(t, "1 2", parseValue("1 2"))
}

func TestToken(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "token", "--subject", "ops", "--role", auth.RoleCounterAdmin, "--role", auth.RoleCounterReader)
	require.NoError(t, err)
	token := decode(t, out)["token"].(string)

	caller, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret, Issuer: "autoinc"}).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", caller.Subject)
	assert.ElementsMatch(t, []string{auth.RoleCounterAdmin, auth.RoleCounterReader}, caller.Roles)

	_, err = h.run(t, "token")
	assert.Error(t, err, "subject is required")

	h.cfg.Auth.JWTSecret = ""
	_, err = h.run(t, "token", "--subject", "ops")
	assert.Error(t, err)
}
