package predicate

import (
	"testing"

	"github.com/Dave360-crypto/LogWatcher/internal/record"
)

func field(t *testing.T, spec string) MatchField {
	t.Helper()
	f, err := ParseMatchField(spec)
	if err != nil {
		t.Fatalf("ParseMatchField(%q): %v", spec, err)
	}
	return f
}

func TestWholeEQ(t *testing.T) {
	p := Predicate{Field: field(t, "WHOLE"), Operator: EQ, Value: "sshd: accepted"}
	ok, err := Evaluate(p, record.Record{Msg: "sshd: accepted"}, nil)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
}

func TestWholeRE(t *testing.T) {
	p := Predicate{Field: field(t, "WHOLE"), Operator: REOp, Value: "ssh.*"}
	ok, err := Evaluate(p, record.Record{Msg: "sshd: accepted"}, nil)
	if err != nil || !ok {
		t.Fatalf("expected regex match, got ok=%v err=%v", ok, err)
	}
	ok, err = Evaluate(p, record.Record{Msg: "cron run"}, nil)
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestSeverityGE(t *testing.T) {
	p := Predicate{Field: field(t, "SEVERITY"), Operator: GE, Value: "warning"}
	// err (code 3) ranks above warning (code 4): 7-3=4 >= 7-4=3.
	ok, err := Evaluate(p, record.Record{Severity: 3}, nil)
	if err != nil || !ok {
		t.Fatalf("err severity should rank >= warning: ok=%v err=%v", ok, err)
	}
	ok, err = Evaluate(p, record.Record{Severity: 6}, nil) // info
	if err != nil || ok {
		t.Fatalf("info severity should not rank >= warning: ok=%v err=%v", ok, err)
	}
}

func TestFieldRange(t *testing.T) {
	p := Predicate{Field: field(t, "FIELD:1-2: "), Operator: EQ, Value: "b c"}
	ok, err := Evaluate(p, record.Record{Msg: "a b c d"}, nil)
	if err != nil || !ok {
		t.Fatalf("expected token range match, got ok=%v err=%v", ok, err)
	}
}

func TestRECapture(t *testing.T) {
	// The operand is the whole message with the match replaced by its
	// capture group, not the capture group in isolation.
	p := Predicate{Field: field(t, `RE:auth (\w+):1`), Operator: EQ, Value: "failed for root"}
	ok, err := Evaluate(p, record.Record{Msg: "auth failed for root"}, nil)
	if err != nil || !ok {
		t.Fatalf("expected substituted operand to match, got ok=%v err=%v", ok, err)
	}
}

func TestRESubstitutionLeavesNonMatchingTextIntact(t *testing.T) {
	p := Predicate{Field: field(t, `RE:from (\S+):1`), Operator: EQ, Value: "user alice 10.0.0.1"}
	ok, err := Evaluate(p, record.Record{Msg: "user alice from 10.0.0.1"}, nil)
	if err != nil || !ok {
		t.Fatalf("expected partial-match substitution to leave surrounding text intact, got ok=%v err=%v", ok, err)
	}
}

func TestNegation(t *testing.T) {
	p := Predicate{Field: field(t, "WHOLE"), Operator: EQ, Value: "x", Negated: true}
	ok, err := Evaluate(p, record.Record{Msg: "y"}, nil)
	if err != nil || !ok {
		t.Fatalf("negated mismatch should evaluate true: ok=%v err=%v", ok, err)
	}
}

// TestIPAsymmetry is testable property #5 (S5 scenario): an IP-mismatch
// comparison is false regardless of negation.
func TestIPAsymmetry(t *testing.T) {
	p := Predicate{Field: field(t, "IP"), Operator: EQ, Value: "10.0.0.1", Negated: true}
	ok, err := Evaluate(p, record.Record{Hostname: "host.example"}, nil)
	if err != nil || ok {
		t.Fatalf("IP mismatch must stay false even when negated: ok=%v err=%v", ok, err)
	}
}

func TestIPNumericCompare(t *testing.T) {
	p := Predicate{Field: field(t, "IP"), Operator: EQ, Value: "10.0.0.1"}
	ok, err := Evaluate(p, record.Record{Hostname: "10.0.0.1"}, nil)
	if err != nil || !ok {
		t.Fatalf("matching IPv4 literals should compare equal: ok=%v err=%v", ok, err)
	}
	ok, err = Evaluate(p, record.Record{Hostname: "10.0.0.2"}, nil)
	if err != nil || ok {
		t.Fatalf("differing IPv4 literals should not compare equal: ok=%v err=%v", ok, err)
	}
}

func TestIPRegexAgainstTwoLiterals(t *testing.T) {
	p := Predicate{Field: field(t, "IP"), Operator: REOp, Value: `^10\.`}
	ok, err := Evaluate(p, record.Record{Hostname: "10.0.0.1"}, nil)
	if err != nil || !ok {
		t.Fatalf("RE against two IPv4 literals should match on the dotted string: ok=%v err=%v", ok, err)
	}
	ok, err = Evaluate(p, record.Record{Hostname: "192.168.0.1"}, nil)
	if err != nil || ok {
		t.Fatalf("RE against two IPv4 literals should not match a different prefix: ok=%v err=%v", ok, err)
	}
}

func TestGeoIPInertWithoutResolver(t *testing.T) {
	p := Predicate{Field: field(t, "GEOIP:hostname"), Operator: EQ, Value: "US", Negated: true}
	ok, err := Evaluate(p, record.Record{Hostname: "1.2.3.4"}, nil)
	if err != nil || ok {
		t.Fatalf("GEOIP without a resolver must be inert, even negated: ok=%v err=%v", ok, err)
	}
}

type stubGeo struct{ country string }

func (s stubGeo) Country(ip string) (string, bool) { return s.country, s.country != "" }

func TestGeoIPWithResolver(t *testing.T) {
	env := &Environment{Geo: stubGeo{country: "US"}}
	p := Predicate{Field: field(t, "GEOIP:hostname"), Operator: EQ, Value: "US"}
	ok, err := Evaluate(p, record.Record{Hostname: "1.2.3.4"}, env)
	if err != nil || !ok {
		t.Fatalf("expected GEOIP match: ok=%v err=%v", ok, err)
	}
}

func TestCaseInsensitive(t *testing.T) {
	p := Predicate{Field: field(t, "WHOLE"), Operator: EQ, Value: "SSHD", CaseInsensitive: true}
	ok, err := Evaluate(p, record.Record{Msg: "sshd"}, nil)
	if err != nil || !ok {
		t.Fatalf("case-insensitive compare should match: ok=%v err=%v", ok, err)
	}
}

func TestInvalidOperator(t *testing.T) {
	if _, err := ParseOperator("NE"); err == nil {
		t.Fatalf("expected ErrInvalidOperator for an unknown operator token")
	}
}
