package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteral_Text(t *testing.T) {
	tests := []struct {
		name string
		in   Literal
		want string
	}{
		{name: "nil", in: Literal{}, want: ""},
		{name: "string", in: String("Ann"), want: "Ann"},
		{name: "int64", in: Literal{V: int64(42)}, want: "42"},
		{name: "int", in: Literal{V: 7}, want: "7"},
		{name: "float", in: Literal{V: 1.5}, want: "1.5"},
		{name: "bool", in: Literal{V: true}, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Text())
		})
	}
}

func TestValue_Kinds(t *testing.T) {
	ref := InstanceRef{Table: "User", Index: 3}
	assert.Equal(t, "User[3]", ref.String())

	values := []Value{String("x"), Reference{Ref: ref}, ReferenceList{Refs: []InstanceRef{ref}}}
	kinds := make([]ValueKind, 0, len(values))
	for _, v := range values {
		kinds = append(kinds, v.Kind())
	}
	assert.Equal(t, []ValueKind{ValueLiteral, ValueReference, ValueReferenceList}, kinds)
}
