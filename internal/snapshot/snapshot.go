// Package snapshot serializes a generated dataset, together with the entity
// definitions it needs, to a JSON document and restores it.
//
// Values are written as tagged variants: a literal carries its scalar type,
// a reference its {table, index} address. Restoring dispatches on the tag,
// so a restored dataset has the same rows, literal values and linkages.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// Version is the document format version.
const Version = 1

// Source is anything that exposes generated tables.
type Source interface {
	Tables() []*dataset.Table
}

// Document is the serialized form of a dataset.
type Document struct {
	Version  int         `json:"version"`
	Seed     int64       `json:"seed,omitempty"`
	Entities []EntityDoc `json:"entities"`
	Tables   []TableDoc  `json:"tables"`
}

// EntityDoc describes the entity behind one table.
type EntityDoc struct {
	Name       string         `json:"name"`
	Table      string         `json:"table"`
	Join       bool           `json:"join,omitempty"`
	Fields     []FieldDoc     `json:"fields"`
	References []ReferenceDoc `json:"references,omitempty"`
}

// FieldDoc describes a field.
type FieldDoc struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Key      bool   `json:"key,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// ReferenceDoc describes a one relationship in which the entity is the child.
type ReferenceDoc struct {
	Column     string `json:"column"`
	To         string `json:"to"`
	BackColumn string `json:"back_column"`
	Endpoint   bool   `json:"endpoint,omitempty"`
}

// TableDoc holds the rows of one table in index order.
type TableDoc struct {
	Name string                `json:"name"`
	Rows []map[string]ValueDoc `json:"rows"`
}

// ValueDoc is one tagged value.
type ValueDoc struct {
	Kind  core.ValueKind     `json:"kind"`
	Type  string             `json:"type,omitempty"`
	Value any                `json:"value,omitempty"`
	Ref   *core.InstanceRef  `json:"ref,omitempty"`
	Refs  []core.InstanceRef `json:"refs,omitempty"`
}

// Literal scalar types.
const (
	TypeNull   = "null"
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
)

// Snapshot is a restored dataset.
type Snapshot struct {
	Seed    int64
	Dataset *dataset.Dataset
}

// Take flattens the tables of src into a document.
func Take(src Source, seed int64) (*Document, error) {
	doc := &Document{Version: Version, Seed: seed}
	for _, t := range src.Tables() {
		doc.Entities = append(doc.Entities, entityDoc(t.Entity))

		td := TableDoc{Name: t.Name, Rows: make([]map[string]ValueDoc, 0, t.Len())}
		for _, row := range t.Rows {
			rd := make(map[string]ValueDoc)
			for _, col := range row.Columns() {
				v, _ := row.Get(col)
				vd, err := encodeValue(v)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", row.Ref, col, err)
				}
				rd[col] = vd
			}
			td.Rows = append(td.Rows, rd)
		}
		doc.Tables = append(doc.Tables, td)
	}
	return doc, nil
}

func entityDoc(e *model.EntityDefinition) EntityDoc {
	ed := EntityDoc{Name: e.Name, Table: e.TableName, Join: e.Join}
	for _, f := range e.Fields {
		ed.Fields = append(ed.Fields, FieldDoc{
			Name: f.Name, Type: string(f.Type), Key: f.Key, Unique: f.Unique, Required: f.Required,
		})
	}
	for _, r := range e.Relationships {
		if r.Type != model.RelationOne || r.From != e.Name {
			continue
		}
		ed.References = append(ed.References, ReferenceDoc{
			Column: r.FromColumn, To: r.To, BackColumn: r.ToColumn, Endpoint: r.Endpoint,
		})
	}
	return ed
}

func encodeValue(v core.Value) (ValueDoc, error) {
	switch v := v.(type) {
	case core.Literal:
		typ, val, err := encodeLiteral(v.V)
		return ValueDoc{Kind: core.ValueLiteral, Type: typ, Value: val}, err
	case core.Reference:
		ref := v.Ref
		return ValueDoc{Kind: core.ValueReference, Ref: &ref}, nil
	case core.ReferenceList:
		return ValueDoc{Kind: core.ValueReferenceList, Refs: v.Refs}, nil
	default:
		return ValueDoc{}, fmt.Errorf("unsupported value %T", v)
	}
}

func encodeLiteral(v any) (string, any, error) {
	switch n := v.(type) {
	case nil:
		return TypeNull, nil, nil
	case string:
		return TypeString, n, nil
	case int64:
		return TypeInt, n, nil
	case int:
		return TypeInt, int64(n), nil
	case float64:
		return TypeFloat, n, nil
	case bool:
		return TypeBool, n, nil
	default:
		return "", nil, fmt.Errorf("unsupported literal %T", v)
	}
}

// decoders rebuild a value from its tagged form, one per kind.
var decoders = map[core.ValueKind]func(ValueDoc) (core.Value, error){
	core.ValueLiteral:       decodeLiteral,
	core.ValueReference:     decodeReference,
	core.ValueReferenceList: decodeReferenceList,
}

func decodeLiteral(vd ValueDoc) (core.Value, error) {
	switch vd.Type {
	case TypeNull:
		return core.Literal{}, nil
	case TypeString:
		s, ok := vd.Value.(string)
		if !ok {
			return nil, fmt.Errorf("string literal holds %T", vd.Value)
		}
		return core.String(s), nil
	case TypeInt:
		n, ok := vd.Value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("int literal holds %T", vd.Value)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, err
		}
		return core.Literal{V: i}, nil
	case TypeFloat:
		n, ok := vd.Value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("float literal holds %T", vd.Value)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return core.Literal{V: f}, nil
	case TypeBool:
		b, ok := vd.Value.(bool)
		if !ok && vd.Value != nil {
			return nil, fmt.Errorf("bool literal holds %T", vd.Value)
		}
		return core.Literal{V: b}, nil
	default:
		return nil, fmt.Errorf("unknown literal type %q", vd.Type)
	}
}

func decodeReference(vd ValueDoc) (core.Value, error) {
	if vd.Ref == nil {
		return nil, errors.New("reference without ref")
	}
	return core.Reference{Ref: *vd.Ref}, nil
}

func decodeReferenceList(vd ValueDoc) (core.Value, error) {
	return core.ReferenceList{Refs: vd.Refs}, nil
}

// Restore rebuilds the entity definitions and the dataset described by doc.
// Every reference must point at an existing row.
func (doc *Document) Restore() (*Snapshot, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("snapshot version %d is not supported (want %d)", doc.Version, Version)
	}

	defs := make(map[string]*model.EntityDefinition, len(doc.Entities))
	for _, ed := range doc.Entities {
		def, err := restoreEntity(ed)
		if err != nil {
			return nil, err
		}
		defs[ed.Name] = def
	}

	ds := dataset.New()
	for _, td := range doc.Tables {
		def, ok := defs[td.Name]
		if !ok {
			return nil, &core.Error{Kind: core.KindMissingTable, Entity: td.Name, Msg: "snapshot table has no entity"}
		}
		t, err := ds.AddTable(def)
		if err != nil {
			return nil, err
		}
		for i, rd := range td.Rows {
			vals := make(map[string]core.Value, len(rd))
			for col, vd := range rd {
				decode, ok := decoders[vd.Kind]
				if !ok {
					return nil, fmt.Errorf("%s[%d].%s: unknown value kind %q", td.Name, i, col, vd.Kind)
				}
				v, err := decode(vd)
				if err != nil {
					return nil, fmt.Errorf("%s[%d].%s: %w", td.Name, i, col, err)
				}
				vals[col] = v
			}
			t.Append().Restore(vals)
		}
	}

	if err := checkReferences(ds); err != nil {
		return nil, err
	}
	return &Snapshot{Seed: doc.Seed, Dataset: ds}, nil
}

func restoreEntity(ed EntityDoc) (*model.EntityDefinition, error) {
	def := model.NewEntity(ed.Name)
	if ed.Table != "" {
		def.TableName = ed.Table
	}
	def.Join = ed.Join
	for _, fd := range ed.Fields {
		f := &model.FieldDefinition{
			Name: fd.Name, Type: model.FieldType(fd.Type), Key: fd.Key, Unique: fd.Unique, Required: fd.Required,
		}
		if err := def.AddField(f); err != nil {
			return nil, err
		}
	}
	for _, rd := range ed.References {
		def.AddRelation(&model.RelationshipDefinition{
			From: ed.Name, FromColumn: rd.Column, To: rd.To, ToColumn: rd.BackColumn,
			Type: model.RelationOne, Endpoint: rd.Endpoint,
		})
	}
	return def, nil
}

func checkReferences(ds *dataset.Dataset) error {
	for _, t := range ds.Tables() {
		for _, row := range t.Rows {
			for _, col := range row.Columns() {
				v, _ := row.Get(col)
				var refs []core.InstanceRef
				switch v := v.(type) {
				case core.Reference:
					refs = []core.InstanceRef{v.Ref}
				case core.ReferenceList:
					refs = v.Refs
				}
				for _, ref := range refs {
					if _, err := ds.Resolve(ref); err != nil {
						return fmt.Errorf("%s.%s: %w", row.Ref, col, err)
					}
				}
			}
		}
	}
	return nil
}

// Encode writes the tables of src as an indented JSON document.
func Encode(w io.Writer, src Source, seed int64) error {
	doc, err := Take(src, seed)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a document and restores its dataset.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return doc.Restore()
}

// WriteFile encodes src to path, creating parent directories.
func WriteFile(path string, src Source, seed int64) error {
	var buf bytes.Buffer
	if err := Encode(&buf, src, seed); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadFile decodes the snapshot at path.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}
