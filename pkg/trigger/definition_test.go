package trigger

import (
	"testing"
)

// validDefinition returns a minimal valid definition for mutation in tests.
func validDefinition() *Definition {
	return &Definition{
		Name:       "build",
		Expression: "**/*.go",
		Command:    []string{"make", "build"},
	}
}

func TestDefinitionValid(t *testing.T) {
	if err := validDefinition().EnsureValid(); err != nil {
		t.Error("valid definition rejected:", err)
	}
}

func TestDefinitionEmptyNameInvalid(t *testing.T) {
	definition := validDefinition()
	definition.Name = ""
	if definition.EnsureValid() == nil {
		t.Error("definition with empty name considered valid")
	}
}

func TestDefinitionBadExpressionInvalid(t *testing.T) {
	definition := validDefinition()
	definition.Expression = "[a-"
	if definition.EnsureValid() == nil {
		t.Error("definition with malformed expression considered valid")
	}
}

func TestDefinitionEmptyCommandInvalid(t *testing.T) {
	definition := validDefinition()
	definition.Command = nil
	if definition.EnsureValid() == nil {
		t.Error("definition with empty command considered valid")
	}
}

func TestDefinitionUnknownStdinModeInvalid(t *testing.T) {
	definition := validDefinition()
	definition.Stdin = "pipe"
	if definition.EnsureValid() == nil {
		t.Error("definition with unknown stdin mode considered valid")
	}
}

func TestDefinitionFieldsRequireFieldsMode(t *testing.T) {
	definition := validDefinition()
	definition.Stdin = StdinModeNames
	definition.Fields = []string{"name"}
	if definition.EnsureValid() == nil {
		t.Error("field selection without fields stdin mode considered valid")
	}
}

func TestDefinitionUnknownFieldInvalid(t *testing.T) {
	definition := validDefinition()
	definition.Stdin = StdinModeFields
	definition.Fields = []string{"name", "bogus"}
	if definition.EnsureValid() == nil {
		t.Error("definition with unknown field considered valid")
	}
}

func TestDefinitionRelativeRootEscapeInvalid(t *testing.T) {
	definition := validDefinition()
	definition.RelativeRoot = "../elsewhere"
	if definition.EnsureValid() == nil {
		t.Error("definition with escaping relative root considered valid")
	}
}

func TestParseRedirectionEmpty(t *testing.T) {
	if redirection, err := ParseRedirection(""); err != nil {
		t.Error("empty specification rejected:", err)
	} else if redirection != nil {
		t.Error("empty specification yielded a redirection")
	}
}

func TestParseRedirectionTruncate(t *testing.T) {
	redirection, err := ParseRedirection(">out.log")
	if err != nil {
		t.Fatal("truncate specification rejected:", err)
	}
	if redirection.Path != "out.log" {
		t.Error("truncate target mismatch:", redirection.Path)
	}
	if redirection.Append {
		t.Error("truncate specification parsed as append")
	}
}

func TestParseRedirectionAppend(t *testing.T) {
	redirection, err := ParseRedirection(">>out.log")
	if err != nil {
		t.Skip("append mode not supported on this platform")
	}
	if redirection.Path != "out.log" {
		t.Error("append target mismatch:", redirection.Path)
	}
	if !redirection.Append {
		t.Error("append specification parsed as truncate")
	}
}

func TestParseRedirectionMissingPrefixInvalid(t *testing.T) {
	if _, err := ParseRedirection("out.log"); err == nil {
		t.Error("specification without redirection prefix considered valid")
	}
}

func TestParseRedirectionMissingPathInvalid(t *testing.T) {
	if _, err := ParseRedirection(">"); err == nil {
		t.Error("specification without target path considered valid")
	}
}

func TestSemanticallyEqualIdentical(t *testing.T) {
	if !validDefinition().SemanticallyEqual(validDefinition()) {
		t.Error("identical definitions not semantically equal")
	}
}

func TestSemanticallyEqualNormalizesStdin(t *testing.T) {
	first := validDefinition()
	second := validDefinition()
	second.Stdin = StdinModeDevNull
	if !first.SemanticallyEqual(second) {
		t.Error("elided default stdin mode counted as a difference")
	}
}

func TestSemanticallyEqualDetectsCommandChange(t *testing.T) {
	first := validDefinition()
	second := validDefinition()
	second.Command = []string{"make", "test"}
	if first.SemanticallyEqual(second) {
		t.Error("differing commands considered semantically equal")
	}
}

func TestSemanticallyEqualDetectsBoundChange(t *testing.T) {
	first := validDefinition()
	second := validDefinition()
	second.MaxFilesStdin = 10
	if first.SemanticallyEqual(second) {
		t.Error("differing stdin bounds considered semantically equal")
	}
}
