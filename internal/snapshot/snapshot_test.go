package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/engine"
	"github.com/leapstack-labs/leapseed/internal/testutil"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

func testSchema() *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			{Name: "Organisation", Count: 3, Fields: []core.FieldSpec{
				{Name: "id", Type: "integer", Key: true},
				{Name: "name", Generator: "[company]"},
			}},
			{Name: "User", Count: 12, Fields: []core.FieldSpec{
				{Name: "id", Type: "uuid", Key: true},
				{Name: "email", Type: "email", Unique: true, Generator: "[first].[n]@Example.com"},
				{Name: "score", Type: "float", Generator: "[n].5"},
				{Name: "active", Type: "boolean", Generator: "[flag]"},
				{Name: "nickname", Type: "string"},
			}},
			{Name: "Project", Count: 4, Fields: []core.FieldSpec{{Name: "title", Generator: "[company] [n]"}}},
		},
		Relationships: []core.RelationshipSpec{
			{From: "User", To: "Organisation", Type: core.RelationOne},
			{From: "User", To: "Project", Type: core.RelationMany, SeedCount: 2},
		},
		Generators: []core.GeneratorSpec{
			{Name: "company", Spec: "Acme;Globex"},
			{Name: "first", Spec: "ann;bob;cid"},
			{Name: "n", Spec: "1>10000"},
			{Name: "flag", Spec: "true;false"},
		},
	}
}

func generate(t *testing.T) (*engine.Engine, *dataset.Dataset) {
	t.Helper()
	e, err := engine.New(testSchema(), engine.Config{Seed: 9, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	ds, err := e.Generate(context.Background())
	require.NoError(t, err)
	return e, ds
}

// keyOf renders the key of the row a reference points at.
func keyOf(t *testing.T, ds *dataset.Dataset, ref core.InstanceRef) string {
	t.Helper()
	row, err := ds.Resolve(ref)
	require.NoError(t, err)
	key := row.Entity.KeyField()
	if key == nil {
		return ref.String()
	}
	v, _ := row.Text(key.Name)
	return v
}

func TestRoundTrip(t *testing.T) {
	e, original := generate(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, e, e.Seed()))

	snap, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, e.Seed(), snap.Seed)
	restored := snap.Dataset

	require.Len(t, restored.Tables(), len(original.Tables()))
	for _, ot := range original.Tables() {
		rt, ok := restored.Table(ot.Name)
		require.True(t, ok, "table %s missing", ot.Name)
		require.Equal(t, ot.Len(), rt.Len(), "row count of %s", ot.Name)
		assert.Equal(t, ot.Entity.Join, rt.Entity.Join)

		for i, orow := range ot.Rows {
			rrow := rt.Rows[i]
			assert.Equal(t, orow.Columns(), rrow.Columns())

			for _, col := range orow.Columns() {
				ov, _ := orow.Get(col)
				rv, _ := rrow.Get(col)
				switch ov := ov.(type) {
				case core.Literal:
					assert.Equal(t, ov, rv, "%s.%s", orow.Ref, col)
				case core.Reference:
					r, ok := rv.(core.Reference)
					require.True(t, ok, "%s.%s", orow.Ref, col)
					assert.Equal(t, keyOf(t, original, ov.Ref), keyOf(t, restored, r.Ref))
				case core.ReferenceList:
					r, ok := rv.(core.ReferenceList)
					require.True(t, ok, "%s.%s", orow.Ref, col)
					require.Len(t, r.Refs, len(ov.Refs))
					for j := range ov.Refs {
						assert.Equal(t, keyOf(t, original, ov.Refs[j]), keyOf(t, restored, r.Refs[j]))
					}
				}
			}
		}
	}
}

func TestRoundTrip_EntityDefinitions(t *testing.T) {
	e, _ := generate(t)

	doc, err := Take(e, 0)
	require.NoError(t, err)
	snap, err := doc.Restore()
	require.NoError(t, err)

	users, ok := snap.Dataset.Table("User")
	require.True(t, ok)
	key := users.Entity.KeyField()
	require.NotNil(t, key)
	assert.Equal(t, "id", key.Name)
	assert.Len(t, users.Entity.UniqueFields(), 2)

	var refs []string
	for _, r := range users.Entity.Relationships {
		refs = append(refs, r.FromColumn+"->"+r.To)
	}
	assert.Equal(t, []string{"Organisation->Organisation"}, refs)

	join, ok := snap.Dataset.Table("UserProject")
	require.True(t, ok)
	assert.True(t, join.Entity.Join)
	assert.Len(t, join.Entity.Relationships, 2)
}

func TestFile(t *testing.T) {
	e, original := generate(t)
	path := filepath.Join(t.TempDir(), "out", "snapshot.json")

	require.NoError(t, WriteFile(path, e, 9))
	snap, err := ReadFile(path)
	require.NoError(t, err)

	for _, ot := range original.Tables() {
		rt, ok := snap.Dataset.Table(ot.Name)
		require.True(t, ok)
		assert.Equal(t, ot.Len(), rt.Len())
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "failed to open snapshot")
}

func TestDecode_Errors(t *testing.T) {
	entities := `"entities":[{"name":"A","table":"A","fields":[{"name":"x","type":"string"}]}]`
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "not json",
			doc:  `{`,
			want: "failed to decode snapshot",
		},
		{
			name: "wrong version",
			doc:  `{"version":2,"entities":[],"tables":[]}`,
			want: "version 2",
		},
		{
			name: "table without entity",
			doc:  `{"version":1,"entities":[],"tables":[{"name":"A","rows":[]}]}`,
			want: "snapshot table has no entity",
		},
		{
			name: "unknown kind",
			doc:  `{"version":1,` + entities + `,"tables":[{"name":"A","rows":[{"x":{"kind":"blob"}}]}]}`,
			want: `unknown value kind "blob"`,
		},
		{
			name: "unknown literal type",
			doc:  `{"version":1,` + entities + `,"tables":[{"name":"A","rows":[{"x":{"kind":"literal","type":"date","value":"x"}}]}]}`,
			want: `unknown literal type "date"`,
		},
		{
			name: "mistyped literal",
			doc:  `{"version":1,` + entities + `,"tables":[{"name":"A","rows":[{"x":{"kind":"literal","type":"int","value":"7"}}]}]}`,
			want: "int literal holds string",
		},
		{
			name: "dangling reference",
			doc:  `{"version":1,` + entities + `,"tables":[{"name":"A","rows":[{"x":{"kind":"reference","ref":{"table":"A","index":4}}}]}]}`,
			want: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func TestEncode_LiteralTypes(t *testing.T) {
	tests := []struct {
		in   any
		typ  string
		want core.Value
	}{
		{nil, TypeNull, core.Literal{}},
		{"x", TypeString, core.String("x")},
		{int64(7), TypeInt, core.Literal{V: int64(7)}},
		{7, TypeInt, core.Literal{V: int64(7)}},
		{2.5, TypeFloat, core.Literal{V: 2.5}},
		{false, TypeBool, core.Literal{V: false}},
	}
	for _, tt := range tests {
		vd, err := encodeValue(core.Literal{V: tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.typ, vd.Type)

		var buf bytes.Buffer
		doc := `{"version":1,"entities":[{"name":"A","table":"A","fields":[{"name":"x","type":"string"}]}],"tables":[{"name":"A","rows":[{"x":`
		buf.WriteString(doc)
		require.NoError(t, writeJSON(&buf, vd))
		buf.WriteString(`}]}]}`)

		snap, err := Decode(&buf)
		require.NoError(t, err)
		tbl, _ := snap.Dataset.Table("A")
		got, _ := tbl.Rows[0].Get("x")
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}

	_, err := encodeValue(core.Literal{V: []int{1}})
	assert.ErrorContains(t, err, "unsupported literal")
}
