package llmchange

import (
	"context"
	"testing"

	"github.com/svcs-project/svcs/internal/model"
)

func TestNewWithoutAPIKeyIsDisabled(t *testing.T) {
	d, err := New(context.Background(), "", "", 0, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if d.Enabled() {
		t.Error("expected Enabled()=false with no API key")
	}
}

func TestNewWithDisableEnvVarIsDisabled(t *testing.T) {
	t.Setenv(DisableEnvVar, "1")
	d, err := New(context.Background(), "some-key", "", 0, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if d.Enabled() {
		t.Error("expected Enabled()=false when SVCS_DISABLE_LAYER_5B is set")
	}
}

func TestDetectOnDisabledDetectorReturnsNil(t *testing.T) {
	d, err := New(context.Background(), "", "", 0, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	out := d.Detect(context.Background(), "f.py", model.CodeModel{}, model.CodeModel{}, []byte("a"), []byte("b"))
	if out != nil {
		t.Errorf("expected nil events from a disabled detector, got %v", out)
	}
}

func TestIsTrivialShortFiles(t *testing.T) {
	before := model.New("f.py", "python")
	after := model.New("f.py", "python")
	if !isTrivial(before, after, []byte("a\nb"), []byte("a\nc")) {
		t.Error("expected short files to be trivial")
	}
}

func TestIsTrivialWhitespaceOnlyChange(t *testing.T) {
	before := model.New("f.py", "python")
	after := model.New("f.py", "python")
	src := "line one\nline two\nline three\nline four\nline five\nline six\n"
	srcSpaced := "line one\nline two \nline three\nline four\nline five\nline six\n"
	if !isTrivial(before, after, []byte(src), []byte(srcSpaced)) {
		t.Error("expected a whitespace-only difference to be trivial")
	}
}

func TestIsTrivialLiteralValueChangeOnly(t *testing.T) {
	before := model.New("f.py", "python")
	after := model.New("f.py", "python")
	beforeSrc := "x = 1\ny = 2\nz = 3\nw = 4\nv = 5\nu = 6\n"
	afterSrc := "x = 9\ny = 2\nz = 3\nw = 4\nv = 5\nu = 6\n"
	if !isTrivial(before, after, []byte(beforeSrc), []byte(afterSrc)) {
		t.Error("expected a literal-only value change to be trivial")
	}
}

func TestIsTrivialLowComplexityChange(t *testing.T) {
	before := model.New("f.py", "python")
	after := model.New("f.py", "python")
	// 7+ lines each side with a real (non-literal) diff, but no functions,
	// classes, or imports: combined structural complexity is 0 < 3.
	beforeSrc := "a = 1\nb = 2\nc = 3\nd = 4\ne = 5\nf = 6\ng = foo\n"
	afterSrc := "a = 1\nb = 2\nc = 3\nd = 4\ne = 5\nf = 6\ng = bar\n"
	if !isTrivial(before, after, []byte(beforeSrc), []byte(afterSrc)) {
		t.Error("expected a low-complexity change to be trivial")
	}
}

func TestIsTrivialFalseForSubstantiveChange(t *testing.T) {
	fn := model.Function{
		QualifiedName:       "f",
		ControlFlowFeatures: map[model.ControlFlowFeature]struct{}{model.FeatureTry: {}, model.FeatureFor: {}},
	}
	before := model.New("f.py", "python")
	before.Functions[fn.ID()] = fn
	after := model.New("f.py", "python")
	fn2 := fn
	fn2.ControlFlowFeatures = map[model.ControlFlowFeature]struct{}{model.FeatureWith: {}}
	after.Functions[fn2.ID()] = fn2
	after.Classes["class:C"] = model.Class{QualifiedName: "C"}

	beforeSrc := "def f():\n    try:\n        for x in y:\n            pass\n    except Exception:\n        pass\n    return x\n"
	afterSrc := "class C:\n    pass\n\ndef f():\n    with open('x') as fh:\n        data = fh.read()\n    return data\n"
	if isTrivial(before, after, []byte(beforeSrc), []byte(afterSrc)) {
		t.Error("expected a structurally substantive change to not be trivial")
	}
}

func TestParseResponseSingleObject(t *testing.T) {
	entries, err := parseResponse(`some preamble {"change_type":"design_pattern","confidence":0.9,"description":"d","reasoning":"r","impact":"low"} trailing`)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if len(entries) != 1 || entries[0].ChangeType != "design_pattern" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParseResponseArray(t *testing.T) {
	entries, err := parseResponse(`[{"change_type":"architecture_change","confidence":0.7,"description":"d1"},{"change_type":"readability_improvement","confidence":0.8,"description":"d2"}]`)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestParseResponseNoJSONFails(t *testing.T) {
	if _, err := parseResponse("no json here at all"); err == nil {
		t.Error("expected an error for text with no JSON")
	}
}

func TestSmartTruncateKeepsWholeLines(t *testing.T) {
	src := "line1\nline2\nline3\n"
	got := smartTruncate(src, 11)
	if got != "line1\n" {
		t.Errorf("smartTruncate = %q", got)
	}
}

func TestSmartTruncateUnderLimitIsUnchanged(t *testing.T) {
	src := "short"
	if got := smartTruncate(src, 100); got != src {
		t.Errorf("smartTruncate = %q, want %q", got, src)
	}
}
