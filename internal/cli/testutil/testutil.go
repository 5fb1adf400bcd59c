// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// SchemaYAML is the schema of the test project: organisations with users,
// projects joined to users, and a role table filled from a list generator.
const SchemaYAML = `
generators:
  company: Acme;Globex;Initech;Umbrella
  first: Ann;Bob;Cleo;Dev;Eli
  roles: [Owner, Member]
  n: 1>100000

entities:
  - name: Organisation
    count: 3
    fields:
      - name: id
        type: integer
        key: true
      - name: name
        generator: "[company]"
  - name: Role
    count: "@roles"
    fields:
      - name: name
        generator: "[roles]"
  - name: User
    count: 6
    fields:
      - name: id
        type: uuid
        key: true
      - name: name
        required: true
        generator: "[first]"
      - name: email
        type: email
        unique: true
        generator: "[first].[n]@example.com"
  - name: Project
    count: 2
    fields:
      - name: code
        generator: "P-[n]"

relationships:
  - from: User
    to: Organisation
    type: one
  - from: User
    to: Role
    type: one
    default: name:Member
  - from: User
    to: Project
    type: many
`

// ConfigYAML is the leapseed.yaml of the test project.
const ConfigYAML = `
schema:
  - schema.yaml
seed: 7
targets:
  - type: sqlite
    path: out/seed.db
  - type: json
    path: out/seed.json
environments:
  ci:
    seed: 11
`

// SetupTestProject creates a temporary project with a schema and a config
// exporting to sqlite and json under out/.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	files := map[string]string{
		"schema.yaml":   SchemaYAML,
		"leapseed.yaml": ConfigYAML,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return tmpDir
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
