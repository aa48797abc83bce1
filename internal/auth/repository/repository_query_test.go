package repository

import (
	"strings"
	"testing"
)

func TestResolveUserQueryMatchesIDOrNameCaseInsensitively(t *testing.T) {
	query := strings.ToLower(resolveUserQuery)

	requiredFragments := []string{
		"id::text = $1",
		"lower(name) = lower($1)",
		"limit 1",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected resolve query fragment %q to be present", fragment)
		}
	}
}

func TestListUsersQueryNeverSelectsBeyondUsers(t *testing.T) {
	query := strings.ToLower(listUsersQuery)
	if strings.Contains(query, "join") {
		t.Fatal("list users query should not join other tables")
	}
}
