package errors

import (
	stderrs "errors"
	"net/http"
	"testing"
)

func TestErrorTypeAndMethods(t *testing.T) {
	// nil *Error should render "<nil>"
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	// New / Newf
	e1 := New(ErrorCodeValidation, "bad stuff")
	if CodeOf(e1) != ErrorCodeValidation {
		t.Fatalf("CodeOf(New) = %v", CodeOf(e1))
	}
	e2 := Newf(ErrorCodeSchema, "bad verdict %d", 12)
	if got := e2.Error(); got != "bad verdict 12" {
		t.Fatalf("Newf().Error = %q", got)
	}

	// Wrap / Wrapf / Unwrap
	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeDB, "db failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	if CodeOf(e3) != ErrorCodeDB {
		t.Fatalf("CodeOf(Wrap) = %v", CodeOf(e3))
	}
	if got := e3.Error(); got != "db failed: root" {
		t.Fatalf("Wrap().Error = %q", got)
	}

	// WrapIf
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}

	// Root digs to the deepest cause
	e4 := Wrap(e3, ErrorCodeUnavailable, "outer")
	if Root(e4).Error() != "root" {
		t.Fatalf("Root = %q", Root(e4).Error())
	}
}

func TestMutatorsCopyOnWrite(t *testing.T) {
	base := New(ErrorCodeTransition, "illegal transition")

	withField := WithField(base, "status")
	be, _ := As(base)
	fe, _ := As(withField)
	if be.Field() != "" || fe.Field() != "status" {
		t.Fatalf("WithField mutated original or missed copy")
	}

	withOp := WithOp(base, "rules.Transition")
	oe, _ := As(withOp)
	if oe.Op() != "rules.Transition" {
		t.Fatalf("WithOp = %q", oe.Op())
	}

	// foreign errors pass through unchanged
	foreign := stderrs.New("foreign")
	if WithField(foreign, "x") != foreign {
		t.Fatalf("WithField should not touch foreign errors")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(CircuitOpenf("breaker open for %s", "gov.example"), ErrorCodeCircuitOpen) {
		t.Fatalf("CircuitOpenf should carry ErrorCodeCircuitOpen")
	}
	if !IsCode(Transitionf("DRAFT to APPROVED"), ErrorCodeTransition) {
		t.Fatalf("Transitionf should carry ErrorCodeTransition")
	}
	if IsCode(stderrs.New("plain"), ErrorCodeCircuitOpen) {
		t.Fatalf("foreign error should map to Unknown")
	}
}

func TestRetryableByCode(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{Unavailablef("upstream 503"), true},
		{Newf(ErrorCodeTooManyRequests, "429"), true},
		{CircuitOpenf("open"), false},
		{Contentf("empty body"), false},
		{Schemaf("confidence out of range"), false},
		{Transitionf("no"), false},
		{DuplicateKeyf("dupe"), false},
		{ErrNotFound, false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Fatalf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusInternalServerError},
		{ErrNotFound, http.StatusNotFound},
		{InvalidArgumentf("bad id"), http.StatusUnprocessableEntity},
		{Schemaf("verdict shape"), http.StatusUnprocessableEntity},
		{Transitionf("DRAFT to PUBLISHED"), http.StatusConflict},
		{DuplicateKeyf("dupe"), http.StatusConflict},
		{JSONErrf("trailing data"), http.StatusBadRequest},
		{Newf(ErrorCodeValidation, "missing"), http.StatusBadRequest},
		{Unauthorizedf("no token"), http.StatusUnauthorized},
		{Newf(ErrorCodeTooManyRequests, "429"), http.StatusTooManyRequests},
		{Unavailablef("upstream"), http.StatusServiceUnavailable},
		{CircuitOpenf("open"), http.StatusServiceUnavailable},
		{DBf("boom"), http.StatusInternalServerError},
		{stderrs.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if c.err == nil {
			continue
		}
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWireFrom(t *testing.T) {
	w := WireFrom(WithField(Newf(ErrorCodeValidation, "must be set"), "concept_slug"))
	if w.Code != ErrorCodeValidation || w.Field != "concept_slug" || w.Message != "must be set" {
		t.Fatalf("WireFrom = %+v", w)
	}
	if WireFrom(nil) != (Wire{}) {
		t.Fatalf("WireFrom(nil) should be zero")
	}
	fw := WireFrom(stderrs.New("plain"))
	if fw.Code != ErrorCodeUnknown || fw.Message != "plain" {
		t.Fatalf("foreign WireFrom = %+v", fw)
	}
}
