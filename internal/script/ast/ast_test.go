package ast

import "testing"

func TestBodyStmt_ExactlyOneVariantSet(t *testing.T) {
	raw := BodyStmt{Raw: &RawStmt{Source: "echo hi"}}
	if raw.Subtask != nil {
		t.Fatal("Raw-only BodyStmt should have a nil Subtask")
	}

	sub := BodyStmt{Subtask: &Subtask{Name: "x"}}
	if sub.Raw != nil {
		t.Fatal("Subtask-only BodyStmt should have a nil Raw")
	}
}
