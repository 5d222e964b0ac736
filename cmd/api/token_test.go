package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow-backend/internal/auth"
	"taskflow-backend/internal/config"
)

func TestTokenCmd(t *testing.T) {
	t.Setenv(config.PathEnv, "")
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	cmd := tokenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "user-7"})
	require.NoError(t, cmd.Execute())

	ident, err := auth.ParseToken([]byte("cli-secret"), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{ID: "user-7", Authenticated: true}, ident)

	cmd = tokenCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--user", auth.NewPseudoID()})
	assert.Error(t, cmd.Execute())
}
