package validation

import (
	"strings"
	"testing"
)

func TestFieldValidators(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantErr bool
	}{
		{"utf8 ascii", ValidateUTF8("f", "hello"), false},
		{"utf8 multibyte", ValidateUTF8("f", "Grüße, 世界"), false},
		{"utf8 invalid", ValidateUTF8("f", string([]byte{0xff, 0xfe})), true},
		{"null bytes clean", ValidateNoNullBytes("f", "abc"), false},
		{"null bytes present", ValidateNoNullBytes("f", "a\x00b"), true},
		{"max length at limit", ValidateMaxLength("f", "abcde", 5), false},
		{"max length counts runes", ValidateMaxLength("f", "世界世界世", 5), false},
		{"max length exceeded", ValidateMaxLength("f", "abcdef", 5), true},
		{"required present", ValidateRequired("f", "x"), false},
		{"required empty", ValidateRequired("f", ""), true},
		{"required whitespace", ValidateRequired("f", " \t"), true},
		{"enum member", ValidateEnum("f", "b", []string{"a", "b"}), false},
		{"enum case sensitive", ValidateEnum("f", "B", []string{"a", "b"}), true},
		{"range inside", ValidateRange("f", 3, 1, 5), false},
		{"range below", ValidateRange("f", 0.5, 1, 5), true},
		{"range above", ValidateRange("f", 5.1, 1, 5), true},
		{"email ok", ValidateEmail("f", "jane.doe@example.com"), false},
		{"email no at", ValidateEmail("f", "jane.example.com"), true},
		{"email no domain dot", ValidateEmail("f", "jane@localhost"), true},
		{"email trailing at", ValidateEmail("f", "jane@"), true},
		{"email with space", ValidateEmail("f", "jane doe@example.com"), true},
		{"date empty allowed", ValidateDate("f", ""), false},
		{"date only", ValidateDate("f", "2026-10-15"), false},
		{"date rfc3339", ValidateDate("f", "2026-10-15T08:00:00Z"), false},
		{"date invalid", ValidateDate("f", "15.10.2026"), true},
		{"uid ok", ValidatePOCUID("f", "POC-ABC123DEF456"), false},
		{"uid lower hex ok", ValidatePOCUID("f", "POC-abc123def456"), false},
		{"uid short", ValidatePOCUID("f", "POC-ABC"), true},
		{"uid no prefix", ValidatePOCUID("f", "ABC123DEF456"), true},
		{"uid non hex", ValidatePOCUID("f", "POC-ABC123DEF45Z"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("got %v, wantErr %v", tt.err, tt.wantErr)
			}
			if tt.err != nil && tt.err.Field != "f" {
				t.Errorf("Field = %q, want f", tt.err.Field)
			}
		})
	}
}

func TestValidateMaxLength_Message(t *testing.T) {
	err := ValidateMaxLength("text", strings.Repeat("x", 11), 10)
	if err == nil || !strings.Contains(err.Message, "10") {
		t.Errorf("expected message naming the limit, got %+v", err)
	}
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("empty collector reports errors")
	}

	c.Add(nil)
	c.Add(&ValidationError{Field: "f1", Message: "m1"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "f2", Message: "m2"})

	if !c.HasErrors() {
		t.Fatal("HasErrors() = false after adding errors")
	}
	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2 (nil ignored)", len(errs))
	}
	if errs[0].Field != "f1" || errs[1].Field != "f2" {
		t.Errorf("errors out of order: %+v", errs)
	}
}
