package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeDecoder struct {
	payload string
}

func (d fakeDecoder) Claims(v any) error {
	return json.Unmarshal([]byte(d.payload), v)
}

type fakeVerifier struct {
	payload string
	err     error
}

func (f fakeVerifier) Verify(context.Context, string) (claimsDecoder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fakeDecoder{payload: f.payload}, nil
}

func TestVerifyMapsStandardClaims(t *testing.T) {
	p := &Provider{name: "google", verifier: fakeVerifier{payload: `{
		"sub": "g-123",
		"email": "Jane@Example.com",
		"email_verified": true,
		"given_name": "Jane",
		"family_name": "Doe"
	}`}}

	id, err := p.Verify(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ProviderID != "g-123" {
		t.Fatalf("unexpected provider id: %s", id.ProviderID)
	}
	if id.Email != "jane@example.com" {
		t.Fatalf("email must be lowercased, got %s", id.Email)
	}
	if id.FirstName != "Jane" || id.LastName != "Doe" {
		t.Fatalf("unexpected name: %s %s", id.FirstName, id.LastName)
	}
}

func TestVerifyRejectsUnverifiedEmail(t *testing.T) {
	p := &Provider{name: "google", verifier: fakeVerifier{payload: `{
		"sub": "g-123",
		"email": "jane@example.com",
		"email_verified": false
	}`}}

	if _, err := p.Verify(context.Background(), "raw-token"); err == nil {
		t.Fatal("expected error for unverified email")
	}
}

func TestVerifyRejectsMissingSub(t *testing.T) {
	p := &Provider{name: "google", verifier: fakeVerifier{payload: `{"email":"x@example.com","email_verified":true}`}}

	if _, err := p.Verify(context.Background(), "raw-token"); err == nil {
		t.Fatal("expected error for missing sub")
	}
}

func TestVerifyPropagatesProviderError(t *testing.T) {
	p := &Provider{name: "google", verifier: fakeVerifier{err: errors.New("signature mismatch")}}

	if _, err := p.Verify(context.Background(), "raw-token"); err == nil {
		t.Fatal("expected provider error to surface")
	}
	if _, err := p.Verify(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
