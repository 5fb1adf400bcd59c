package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapseed/internal/engine"
	"github.com/leapstack-labs/leapseed/internal/testutil"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// orgSchema has a keyed parent, a keyless child and a many relationship.
func orgSchema() *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			{Name: "Organisation", Count: 2, Fields: []core.FieldSpec{
				{Name: "id", Type: "integer", Key: true},
				{Name: "name", Generator: "[company]", Unique: true},
			}},
			{Name: "User", Count: 3, Fields: []core.FieldSpec{
				{Name: "name", Generator: "[first]", Required: true},
				{Name: "active", Type: "boolean", Generator: "true"},
			}},
			{Name: "Project", Count: 2, Fields: []core.FieldSpec{
				{Name: "code", Type: "uuid", Key: true},
			}},
		},
		Relationships: []core.RelationshipSpec{
			{From: "User", To: "Organisation", Type: core.RelationOne},
			{From: "User", To: "Project", Type: core.RelationMany, SeedCount: 1},
		},
		Generators: []core.GeneratorSpec{
			{Name: "company", Spec: "Acme;Globex"},
			{Name: "first", Spec: "Ann;Bob;Cid"},
		},
	}
}

func generated(t *testing.T) *engine.Engine {
	t.Helper()
	return generatedFrom(t, orgSchema())
}

func generatedFrom(t *testing.T, s *core.Schema) *engine.Engine {
	t.Helper()
	e, err := engine.New(s, engine.Config{Seed: 5, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	_, err = e.Generate(context.Background())
	require.NoError(t, err)
	return e
}
