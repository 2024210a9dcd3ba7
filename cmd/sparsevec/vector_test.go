package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/viant/sparsevec/vector"
)

func TestSimCmd(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("sim", "1:1", "1:1,2:1")
	for _, want := range []string{"dot       1\n", "distance  1\n", "cosine    0.7071", "jaccard   0.5\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("sim output missing %q:\n%s", want, out)
		}
	}

	out = e.mustRun("sim", "1:1", "{}")
	if !strings.Contains(out, "cosine    undefined") {
		t.Errorf("expected undefined cosine, got:\n%s", out)
	}

	out = e.mustRun("--json", "sim", "3:4", "{}")
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["cosine"] != nil || got["distance"] != 4.0 || got["dot"] != 0.0 || got["jaccard"] != 0.0 {
		t.Errorf("unexpected json %v", got)
	}

	if _, err := e.run("sim", "1:x", "1:1"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNearestCmd(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("nearest", "1:1", "1:5", "1:1.1", "1:1")
	if out != "2  0\n" {
		t.Errorf("nearest = %q", out)
	}
	if _, err := e.run("nearest", "1:1"); err == nil {
		t.Error("expected error without candidates")
	}
}

func TestCombineCmd(t *testing.T) {
	e := newEnv(t)
	if out := e.mustRun("combine", "plus", "1:2,3:4", "2:5,3:1"); out != "1:2,2:5,3:5\n" {
		t.Errorf("plus = %q", out)
	}
	if out := e.mustRun("combine", "minus", "1:5", "1:2,2:1"); out != "1:3,2:-1\n" {
		t.Errorf("minus = %q", out)
	}
	if out := e.mustRun("combine", "plus", "1:2", "1:-2"); out != "\n" {
		t.Errorf("cancelling plus = %q", out)
	}
	if _, err := e.run("combine", "times", "1:1", "1:1"); err == nil {
		t.Error("expected error for unknown operation")
	}

	out := e.mustRun("--json", "combine", "plus", "1:1", "7:2")
	var got map[string]float64
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 || got["1"] != 1 || got["7"] != 2 {
		t.Errorf("unexpected json %v", got)
	}
}

func TestScaleAndDivideCmd(t *testing.T) {
	e := newEnv(t)
	if out := e.mustRun("scale", "1:2,4:-0.5", "3"); out != "1:6,4:-1.5\n" {
		t.Errorf("scale = %q", out)
	}
	if out := e.mustRun("scale", "1:2", "0"); out != "\n" {
		t.Errorf("scale by zero = %q", out)
	}
	if out := e.mustRun("divide", "1:3,2:-6", "3"); out != "1:1,2:-2\n" {
		t.Errorf("divide = %q", out)
	}

	_, err := e.run("divide", "1:3", "0")
	if !errors.Is(err, vector.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := e.run("scale", "1:3", "abc"); err == nil {
		t.Error("expected error for bad factor")
	}
}
