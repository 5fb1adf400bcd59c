package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapseed/internal/model"
)

func columnNames(l *Layout) []string {
	names := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		names[i] = c.Name
	}
	return names
}

func TestPlan(t *testing.T) {
	e := generated(t)

	layouts, err := Plan(e)
	require.NoError(t, err)

	var tables []string
	for _, l := range layouts {
		tables = append(tables, l.Table.Name)
	}
	require.Len(t, tables, 4)
	pos := make(map[string]int)
	for i, name := range tables {
		pos[name] = i
	}
	assert.Less(t, pos["Organisation"], pos["User"])
	assert.Less(t, pos["User"], pos["UserProject"])
	assert.Less(t, pos["Project"], pos["UserProject"])

	byName := make(map[string]*Layout)
	for _, l := range layouts {
		byName[l.Table.Name] = l
	}

	org := byName["Organisation"]
	assert.Equal(t, []string{"id", "name"}, columnNames(org))
	assert.Equal(t, "id", org.Key().Name)

	user := byName["User"]
	assert.Equal(t, []string{RowColumn, "name", "active", "Organisation"}, columnNames(user))
	assert.Equal(t, RowColumn, user.Key().Name)
	ref := user.Columns[3]
	require.NotNil(t, ref.Ref)
	assert.Equal(t, model.TypeInteger, ref.Type)
	assert.Equal(t, []string{"Organisation"}, user.Parents)

	join := byName["UserProject"]
	assert.ElementsMatch(t, []string{"User", "Project"}, join.Parents)
	for _, c := range join.Columns {
		if c.Ref != nil && c.Ref.To == "Project" {
			assert.Equal(t, model.TypeUUID, c.Type)
		}
	}
}

func TestLayout_Values(t *testing.T) {
	e := generated(t)
	layouts, err := Plan(e)
	require.NoError(t, err)

	var user *Layout
	for _, l := range layouts {
		if l.Table.Name == "User" {
			user = l
		}
	}
	require.NotNil(t, user)

	for i, inst := range user.Table.Rows {
		vals, err := user.Values(e, inst)
		require.NoError(t, err)
		require.Len(t, vals, 4)
		assert.Equal(t, int64(i+1), vals[0])
		assert.Contains(t, []any{"Ann", "Bob", "Cid"}, vals[1])
		assert.Equal(t, true, vals[2])
		assert.Contains(t, []any{int64(1), int64(2)}, vals[3])
	}
}

func TestKeyOf(t *testing.T) {
	e := generated(t)

	orgs, err := e.EnsureTable("Organisation")
	require.NoError(t, err)
	assert.Equal(t, int64(2), KeyOf(orgs.Rows[1]))

	users, err := e.EnsureTable("User")
	require.NoError(t, err)
	assert.Equal(t, int64(3), KeyOf(users.Rows[2]))

	projects, err := e.EnsureTable("Project")
	require.NoError(t, err)
	key, ok := KeyOf(projects.Rows[0]).(string)
	require.True(t, ok)
	assert.Len(t, key, 36)
}
