package core

import (
	"net/http"
	"testing"
)

func TestErrorKindHTTPStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		BadRequest:          http.StatusBadRequest,
		DownstreamTransport: http.StatusBadGateway,
		DownstreamProtocol:  http.StatusBadGateway,
		DownstreamTimeout:   http.StatusGatewayTimeout,
		Internal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestSchedErrorMessage(t *testing.T) {
	e := NewError(BadRequest, "bad stuff")
	if e.Error() != "BadRequest: bad stuff" {
		t.Fatalf("Error() = %q", e.Error())
	}

	bare := NewError(Internal, "")
	if bare.Error() != "Internal" {
		t.Fatalf("Error() with empty msg = %q", bare.Error())
	}
}
