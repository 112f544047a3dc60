package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	token, exp, err := Issue("user-1", RoleTeacher, "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 55*time.Minute {
		t.Fatalf("expiry too soon: %v", exp)
	}

	claims, err := Parse(token, "secret", "classtrack")
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleTeacher {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue("user-1", RoleAdmin, "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "other-secret", "classtrack"); err == nil {
		t.Fatal("token signed with a different key must fail")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, _, err := Issue("user-1", RoleAdmin, "someone-else", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "secret", "classtrack"); err == nil {
		t.Fatal("token from a different issuer must fail")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue("user-1", RoleAdmin, "classtrack", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "secret", "classtrack"); err == nil {
		t.Fatal("expired token must fail")
	}
}

func TestPrincipalIsAssigned(t *testing.T) {
	p := Principal{Role: RoleTeacher, AssignedSubjects: []string{"math", "cs"}}
	if !p.IsAssigned("math") || p.IsAssigned("art") {
		t.Fatal("assignment check broken")
	}
}
