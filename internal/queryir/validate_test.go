package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/shelf/internal/ir"
)

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"select all", Select{From: "posts"}},
		{"select columns ordered", Select{From: "posts", Columns: []string{"id", "title"}, Order: Order{Column: "title", Desc: true}}},
		{"select by id", Select{From: "posts", Filter: ByID(3)}},
		{"insert defaults", Insert{Into: "posts"}},
		{"insert values", Insert{Into: "posts", Values: ir.NewRecord(ir.F("title", ir.Text("hi")))}},
		{"update", Update{Table: "posts", Set: ir.NewRecord(ir.F("title", ir.Text("x"))), Filter: ByID(1)}},
		{"delete", Delete{From: "posts", Filter: ByID(1)}},
		{"create", CreateTable{Name: "posts", Columns: []string{"title", "body"}}},
		{"add column", AddColumn{Table: "posts", Column: "views"}},
		{"empty and", Select{From: "posts", Filter: And{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.query))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil", nil, "nil query"},
		{"bad table", Select{From: `posts"; DROP TABLE users; --`}, "invalid table name"},
		{"bad column", Select{From: "posts", Columns: []string{"a b"}}, "invalid column name"},
		{"bad order", Select{From: "posts", Order: Order{Column: "1x"}}, "order"},
		{"nil equals value", Select{From: "posts", Filter: Equals{Column: "a"}}, "nil value"},
		{"nested bad", Select{From: "posts", Filter: And{Predicates: []Predicate{Equals{Column: "-", Value: ir.Null{}}}}}, "and[0]"},
		{"insert identity", Insert{Into: "posts", Values: ir.NewRecord(ir.F("ID", ir.Int(1)))}, "identity column"},
		{"update empty", Update{Table: "posts", Filter: ByID(1)}, "sets no columns"},
		{"update unfiltered", Update{Table: "posts", Set: ir.NewRecord(ir.F("a", ir.Text("b")))}, "requires a filter"},
		{"delete unfiltered", Delete{From: "posts"}, "requires a filter"},
		{"create duplicate", CreateTable{Name: "posts", Columns: []string{"Title", "title"}}, "duplicate column"},
		{"create identity", CreateTable{Name: "posts", Columns: []string{"id"}}, "identity column"},
		{"add identity", AddColumn{Table: "posts", Column: "Id"}, "identity column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestMatching_PreservesOrder(t *testing.T) {
	and := Matching(ir.NewRecord(ir.F("b", ir.Text("1")), ir.F("a", ir.Null{})))
	assert.Equal(t, []Predicate{
		Equals{Column: "b", Value: ir.Text("1")},
		Equals{Column: "a", Value: ir.Null{}},
	}, and.Predicates)
}
