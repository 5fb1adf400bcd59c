package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

func enrolment(students, courses, seedCount int) *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			entity("Student", students, field("name", "[first]")),
			entity("Course", courses, core.FieldSpec{Name: "code", Type: "integer", Key: true}),
		},
		Relationships: []core.RelationshipSpec{{
			From: "Student", To: "Course", Type: core.RelationMany, SeedCount: seedCount,
			Fields: []core.FieldSpec{field("grade", "[grades]")},
		}},
		Generators: []core.GeneratorSpec{gen("first", "Ann;Bob"), gen("grades", "A;B;C")},
	}
}

func TestGenerate_ManyToManyFanout(t *testing.T) {
	tests := []struct {
		name      string
		students  int
		courses   int
		seedCount int
		sampling  Sampling
		want      int
	}{
		{"fewer than courses", 4, 5, 3, SampleWithoutReplacement, 3},
		{"capped at course count", 4, 5, 7, SampleWithoutReplacement, 5},
		{"default fanout", 2, 3, 0, SampleWithoutReplacement, 1},
		{"with replacement", 4, 5, 3, SampleWithReplacement, 3},
		{"with replacement capped", 3, 2, 4, SampleWithReplacement, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := generate(t, enrolment(tt.students, tt.courses, tt.seedCount),
				func(c *Config) { c.Sampling = tt.sampling })

			join := table(t, ds, "StudentCourse")
			assert.Equal(t, tt.students*tt.want, join.Len())

			for _, s := range table(t, ds, "Student").Rows {
				refs := s.References("StudentCourses")
				assert.Len(t, refs, tt.want)

				courses := make(map[core.InstanceRef]bool)
				for _, ref := range refs {
					row, err := ds.Resolve(ref)
					require.NoError(t, err)

					sref, _ := row.Reference("Student")
					assert.Equal(t, s.Ref, sref)
					cref, ok := row.Reference("Course")
					require.True(t, ok)
					courses[cref] = true

					assert.Contains(t, []string{"A", "B", "C"}, text(t, row, "grade"))
					assert.NotContains(t, text(t, row, "id"), "[")
				}
				if tt.sampling == SampleWithoutReplacement {
					assert.Len(t, courses, tt.want, "duplicate course for %s", s.Ref)
				}
			}
		})
	}
}

func TestGenerate_ManyToManySampling(t *testing.T) {
	tests := []struct {
		name       string
		sampling   Sampling
		duplicates bool
	}{
		{"without replacement never repeats a course", SampleWithoutReplacement, false},
		{"with replacement repeats a course", SampleWithReplacement, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// every student draws as many courses as there are
			ds := generate(t, enrolment(20, 5, 5), func(c *Config) { c.Sampling = tt.sampling })

			repeated := 0
			for _, s := range table(t, ds, "Student").Rows {
				refs := s.References("StudentCourses")
				require.Len(t, refs, 5)

				seen := make(map[core.InstanceRef]bool)
				for _, ref := range refs {
					row, err := ds.Resolve(ref)
					require.NoError(t, err)
					cref, _ := row.Reference("Course")
					if seen[cref] {
						repeated++
					}
					seen[cref] = true
				}
			}
			if tt.duplicates {
				assert.Positive(t, repeated)
			} else {
				assert.Zero(t, repeated)
			}
		})
	}
}

func TestEngine_EnsureTable(t *testing.T) {
	ctx := context.Background()

	t.Run("fills join on demand", func(t *testing.T) {
		e := newEngine(t, enrolment(3, 4, 2))
		require.NoError(t, e.Run(ctx, StageRunStreams))

		tbl, ok := e.Dataset().Table("StudentCourse")
		require.True(t, ok)
		assert.Equal(t, 0, tbl.Len())

		tbl, err := e.EnsureTable("StudentCourse")
		require.NoError(t, err)
		assert.Equal(t, 6, tbl.Len())

		require.NoError(t, e.Run(ctx, StageDone))
		assert.Equal(t, 6, tbl.Len(), "join filled twice")
	})

	t.Run("too early", func(t *testing.T) {
		e := newEngine(t, enrolment(3, 4, 2))
		require.NoError(t, e.Run(ctx, StageConnectOneToMany))

		_, err := e.EnsureTable("StudentCourse")
		assert.ErrorIs(t, err, core.ErrMissingTable)
	})

	t.Run("unknown table", func(t *testing.T) {
		e := newEngine(t, enrolment(1, 1, 1))
		_, err := e.EnsureTable("Nope")
		assert.ErrorIs(t, err, core.ErrMissingTable)
	})
}

func TestGenerate_SelfManyToMany(t *testing.T) {
	s := &core.Schema{
		Entities: []core.EntitySpec{entity("Person", 4, field("name", "[first]"))},
		Relationships: []core.RelationshipSpec{{
			From: "Person", To: "Person", Type: core.RelationMany, Name: "Friendship",
			FromColumn: "Person", ToColumn: "Friend", SeedCount: 2,
		}},
		Generators: []core.GeneratorSpec{gen("first", "Ann;Bob")},
	}
	ds := generate(t, s)

	assert.Equal(t, 8, table(t, ds, "Friendship").Len())
	for _, p := range table(t, ds, "Person").Rows {
		assert.Len(t, p.References("Friendships"), 2)
	}
}

func roleSchema(users int, values ...string) *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			entity("Organisation", 1, field("name", "[company]")),
			{Name: "Role", CountFrom: "roles", Fields: []core.FieldSpec{field("name", "[roles]")}},
			entity("User", users, field("name", "[first]")),
		},
		Relationships: []core.RelationshipSpec{
			one("User", "Organisation"),
			{
				From: "User", To: "Role", Type: core.RelationOne, Default: "name:Staff",
				Singular: &core.SingularSpec{Enumerate: "Organisation", Field: "name", Values: values},
			},
		},
		Generators: []core.GeneratorSpec{
			gen("company", "Acme"),
			gen("roles", "CEO;CTO;Staff"),
			gen("first", "Ann;Bob;Cid"),
		},
	}
}

func roleByName(t *testing.T, ds *dataset.Dataset, name string) *dataset.Instance {
	t.Helper()
	rows := table(t, ds, "Role").Find("name", name)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestGenerate_SingularRoles(t *testing.T) {
	ds := generate(t, roleSchema(5, "CEO", "CTO"))

	ceo := roleByName(t, ds, "CEO")
	cto := roleByName(t, ds, "CTO")
	staff := roleByName(t, ds, "Staff")
	assert.Len(t, ceo.References("Users"), 1)
	assert.Len(t, cto.References("Users"), 1)
	assert.Len(t, staff.References("Users"), 3)

	org := table(t, ds, "Organisation").Rows[0]
	kids := org.References("Users")
	first, _ := ds.Resolve(kids[0])
	second, _ := ds.Resolve(kids[1])
	ref, _ := first.Reference("Role")
	assert.Equal(t, ceo.Ref, ref)
	ref, _ = second.Reference("Role")
	assert.Equal(t, cto.Ref, ref)

	for _, u := range table(t, ds, "User").Rows {
		_, ok := u.Reference("Role")
		assert.True(t, ok, "%s has no role", u.Ref)
	}
}

func TestGenerate_SingularErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema *core.Schema
		want   *core.Error
	}{
		{"too few children", roleSchema(1, "CEO", "CTO"), core.ErrInsufficientChildren},
		{"role not found", roleSchema(3, "CFO"), core.ErrEmptyQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEngine(t, tt.schema).Generate(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("default matches nothing", func(t *testing.T) {
		s := roleSchema(2, "CEO")
		s.Relationships[1].Default = "name:Intern"
		_, err := newEngine(t, s).Generate(context.Background())
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("malformed default", func(t *testing.T) {
		s := roleSchema(2, "CEO")
		s.Relationships[1].Default = "Staff"
		_, err := newEngine(t, s).Generate(context.Background())
		assert.ErrorIs(t, err, core.ErrInvalidRelationship)
	})
}

func TestGenerate_DefaultOnly(t *testing.T) {
	s := roleSchema(4)
	s.Relationships[1].Singular = nil
	ds := generate(t, s)

	assert.Len(t, roleByName(t, ds, "Staff").References("Users"), 4)
	assert.Empty(t, roleByName(t, ds, "CEO").References("Users"))
}

func triggerSchema(scripts ...core.TriggerScript) *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			entity("Organisation", 2, field("name", "[company]")),
			{Name: "Role", CountFrom: "roles", Fields: []core.FieldSpec{field("name", "[roles]")}},
			entity("User", 0, field("name", "[first]")),
		},
		Relationships: []core.RelationshipSpec{one("User", "Organisation"), one("User", "Role")},
		Triggers:      []core.TriggerSpec{{Entity: "Organisation", Scripts: scripts}},
		Generators: []core.GeneratorSpec{
			gen("company", "Acme;Globex"),
			gen("roles", "CEO;Staff"),
			gen("first", "Ann;Bob;Cid"),
		},
	}
}

func TestGenerate_Triggers(t *testing.T) {
	ds := generate(t, triggerSchema(
		core.TriggerScript{Path: "Users(0)", Entity: "Role", Query: "name=CEO"},
		core.TriggerScript{Path: "Users(1-2)", Entity: "Role", Query: "name = Staff"},
	))

	ceo := roleByName(t, ds, "CEO")
	staff := roleByName(t, ds, "Staff")
	assert.Equal(t, 6, table(t, ds, "User").Len())
	assert.Len(t, ceo.References("Users"), 2)
	assert.Len(t, staff.References("Users"), 4)

	for _, org := range table(t, ds, "Organisation").Rows {
		kids := org.References("Users")
		require.Len(t, kids, 3)
		for i, kid := range kids {
			u, err := ds.Resolve(kid)
			require.NoError(t, err)
			role, _ := u.Reference("Role")
			if i == 0 {
				assert.Equal(t, ceo.Ref, role)
			} else {
				assert.Equal(t, staff.Ref, role)
			}
		}
	}
}

func TestGenerate_TriggerJoinsManyToMany(t *testing.T) {
	s := &core.Schema{
		Entities: []core.EntitySpec{
			entity("Team", 2, field("name", "[teams]")),
			{Name: "Tag", CountFrom: "tags", Fields: []core.FieldSpec{field("label", "[tags]")}},
			entity("Member", 0, field("name", "[first]")),
		},
		Relationships: []core.RelationshipSpec{
			one("Member", "Team"),
			{From: "Member", To: "Tag", Type: core.RelationMany, SeedCount: 1},
		},
		Triggers: []core.TriggerSpec{{Entity: "Team", Scripts: []core.TriggerScript{
			{Path: "Members", Entity: "Tag", Query: "label=lead"},
		}}},
		Generators: []core.GeneratorSpec{gen("teams", "Red;Blue"), gen("tags", "lead;backend")},
	}
	ds := generate(t, s)

	lead := table(t, ds, "Tag").Find("label", "lead")[0]
	assert.Len(t, lead.References("MemberTags"), 2)
	assert.Equal(t, 2, table(t, ds, "MemberTag").Len(), "trigger join counts toward fanout")
	for _, m := range table(t, ds, "Member").Rows {
		assert.Len(t, m.References("MemberTags"), 1)
	}
}

func TestGenerate_TriggerErrors(t *testing.T) {
	tests := []struct {
		name   string
		script core.TriggerScript
		want   *core.Error
	}{
		{"malformed index", core.TriggerScript{Path: "Users(x)", Entity: "Role", Query: "*"}, core.ErrMalformedIndex},
		{"backwards range", core.TriggerScript{Path: "Users(3-1)", Entity: "Role", Query: "*"}, core.ErrMalformedIndex},
		{"index overflows", core.TriggerScript{Path: "Users(0-99999999999999999999)", Entity: "Role", Query: "*"}, core.ErrMalformedIndex},
		{"no match", core.TriggerScript{Path: "Users", Entity: "Role", Query: "name=Nobody"}, core.ErrEmptyQuery},
		{"unknown column", core.TriggerScript{Path: "Staff(0)", Entity: "Role", Query: "*"}, core.ErrUnresolvedPath},
		{"unknown target", core.TriggerScript{Path: "Users", Entity: "Ghost", Query: "*"}, core.ErrMissingTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEngine(t, triggerSchema(tt.script)).Generate(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTriggerPath(t *testing.T) {
	tests := []struct {
		in     string
		field  string
		lo, hi int
		ok     bool
	}{
		{"Users", "Users", 0, 0, true},
		{"Users(2)", "Users", 2, 2, true},
		{" Users(2-4) ", "Users", 2, 4, true},
		{"Users()", "", 0, 0, false},
		{"Users(4-2)", "", 0, 0, false},
		{"Users(-1)", "", 0, 0, false},
		{"Users(99999999999999999999)", "", 0, 0, false},
		{"Users(1-99999999999999999999)", "", 0, 0, false},
		{"", "", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			field, lo, hi, err := parseTriggerPath(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, core.ErrMalformedIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func ledger(loops ...core.LoopSpec) *core.Schema {
	return &core.Schema{
		Entities: []core.EntitySpec{
			entity("Account", 2, field("name", "[company]")),
			entity("Txn", 0,
				core.FieldSpec{Name: "amount", Type: "integer", Generator: "[n]"},
				field("memo", "[company] #[n]"),
			),
		},
		Relationships: []core.RelationshipSpec{one("Txn", "Account")},
		Streams:       []core.StreamSpec{{Name: "ledger", Entity: "Txn", Parent: "Account", Loops: loops}},
		Generators:    []core.GeneratorSpec{gen("company", "Acme;Globex")},
	}
}

func TestGenerate_Stream(t *testing.T) {
	ds := generate(t, ledger(core.LoopSpec{Name: "n", Type: core.LoopNumber, Min: "1", Max: "3", Increment: "1"}))

	txns := table(t, ds, "Txn")
	require.Equal(t, 6, txns.Len())

	var amounts []any
	for _, row := range txns.Rows {
		v, _ := row.Get("amount")
		amounts = append(amounts, v.(core.Literal).V)
		assert.NotContains(t, text(t, row, "memo"), "[")
	}
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(1), int64(2), int64(3)}, amounts)

	for _, acct := range table(t, ds, "Account").Rows {
		assert.Len(t, acct.References("Txns"), 3)
	}
}

func TestGenerate_StreamWithoutParent(t *testing.T) {
	s := &core.Schema{
		Entities: []core.EntitySpec{entity("Day", 0, field("date", "[d]"))},
		Streams: []core.StreamSpec{{Name: "calendar", Entity: "Day", Loops: []core.LoopSpec{{
			Name: "d", Type: core.LoopDate, Min: "2024-01-01", Max: "2024-01-03", Increment: "1d", Format: "2006-01-02",
		}}}},
	}
	ds := generate(t, s)

	var got []string
	for _, row := range table(t, ds, "Day").Rows {
		got = append(got, text(t, row, "date"))
	}
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, got)
}

func TestGenerate_StreamErrors(t *testing.T) {
	t.Run("bad range", func(t *testing.T) {
		_, err := newEngine(t, ledger(core.LoopSpec{Name: "n", Min: "x", Max: "3"})).Generate(context.Background())
		assert.True(t, core.IsKind(err, core.KindInvalidRange), "got %v", err)
	})

	t.Run("parent without relationship", func(t *testing.T) {
		s := ledger(core.LoopSpec{Name: "n", Min: "1", Max: "2"})
		s.Relationships = nil
		_, err := newEngine(t, s).Generate(context.Background())
		assert.ErrorIs(t, err, core.ErrInvalidRelationship)
	})
}
