package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/powra-portal/config"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
)

func TestCommandsAreRegisteredByName(t *testing.T) {
	for name, c := range commands() {
		assert.Equal(t, name, c.name)
		assert.NotEmpty(t, c.description)
		assert.NotNil(t, c.run)
	}
}

func TestIsLikelyRemoteHost(t *testing.T) {
	tests := map[string]bool{
		"":             false,
		"localhost":    false,
		"127.0.0.1":    false,
		"::1":          false,
		"db.local":     false,
		"127.0.0.2":    false,
		"10.0.0.5":     true,
		"db.prod.corp": true,
		" LOCALHOST ":  false,
		"postgres":     true,
	}
	for host, want := range tests {
		assert.Equal(t, want, isLikelyRemoteHost(host), host)
	}
}

func TestParseListUsersFlags(t *testing.T) {
	opts, err := parseListUsersFlags([]string{"--role", "manager", "--q", " ada ", "--limit", "10", "--offset", "20"})
	require.NoError(t, err)

	list := opts.listOptions()
	require.NotNil(t, list.Role)
	assert.Equal(t, domainauth.RoleSupervisor, *list.Role)
	require.NotNil(t, list.Q)
	assert.Equal(t, "ada", *list.Q)
	assert.Equal(t, 10, list.Limit)
	assert.Equal(t, 20, list.Offset)

	_, err = parseListUsersFlags([]string{"--role", "owner"})
	require.Error(t, err)
	_, err = parseListUsersFlags([]string{"--limit", "0"})
	require.Error(t, err)
}

func TestParseSetRoleFlags(t *testing.T) {
	opts, err := parseSetRoleFlags([]string{"--user-id", "u1", "--role", "admin", "--yes"})
	require.NoError(t, err)
	assert.Equal(t, setRoleOptions{UserID: "u1", Role: "admin", Yes: true}, opts)

	_, err = parseSetRoleFlags([]string{"--role", "admin"})
	require.ErrorContains(t, err, "--user-id")
	_, err = parseSetRoleFlags([]string{"--user-id", "u1", "--role", "root"})
	require.ErrorContains(t, err, "unknown role")
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags("migrate", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	opts, err = parseMigrateFlags("migrate", []string{"--timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	_, err = parseMigrateFlags("migrate", []string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestDevUsers_OnePerRole(t *testing.T) {
	users := devUsers(config.DevAuthConfig{UserID: "dev-user", Email: "dev@example.com", FirstName: "Dev"})
	require.Len(t, users, 3)
	assert.Equal(t, "dev-user", users[0].ID)

	var roles []string
	for _, u := range users {
		u.Normalize()
		require.NoError(t, u.Validate())
		roles = append(roles, u.Role)
	}
	assert.ElementsMatch(t, []string{"admin", "supervisor", "user"}, roles)
}

func TestDecodeSeedUsers(t *testing.T) {
	reqs, err := decodeSeedUsers(strings.NewReader(
		`[{"id":"u1","email":" Pat@Example.com ","first_name":"Pat","role":"manager"}]`))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "pat@example.com", reqs[0].Email)
	assert.Equal(t, "supervisor", reqs[0].Role)

	tests := map[string]string{
		"empty":         `[]`,
		"unknown field": `[{"id":"u1","email":"a@example.com","role":"user","team":"x"}]`,
		"bad role":      `[{"id":"u1","email":"a@example.com","role":"owner"}]`,
		"missing email": `[{"id":"u1","role":"user"}]`,
		"not json":      `id,email`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSeedUsers(strings.NewReader(body))
			require.Error(t, err)
		})
	}
}

func TestPrintUsers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsers(&buf, nil))
	assert.Equal(t, "No users found.\n", buf.String())

	buf.Reset()
	ts := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, printUsers(&buf, []*model.User{
		{ID: "u1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: "admin", UpdatedAt: ts},
		{ID: "u2", Email: "nobody@example.com", Role: "user", UpdatedAt: ts},
	}))
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "2026-10-01T09:00:00Z")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], " - ")
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printMigrationStatus(&buf, []string{"0001_users", "0002_users_updated_at"}, []string{"0002_users_updated_at"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "applied")
	assert.Contains(t, lines[2], "pending")
}
