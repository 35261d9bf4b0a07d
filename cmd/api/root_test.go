package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/config"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand(&config.Config{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "token", "reconcile"}, names)
}

func TestTokenCommandFlags(t *testing.T) {
	cmd := NewTokenCommand(&config.Config{})

	email := cmd.Flags().Lookup("email")
	require.NotNil(t, email)
	assert.Equal(t, []string{"true"}, email.Annotations[cobra.BashCompOneRequiredFlag])

	role := cmd.Flags().Lookup("role")
	require.NotNil(t, role)
	assert.Equal(t, auth.RoleSupplier, role.DefValue)
}
