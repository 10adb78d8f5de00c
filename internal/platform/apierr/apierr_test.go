package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("list results: %w", NotFound())
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("kind=%q want %q", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("kind=%q want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unreachable", Unreachable(errors.New("dial tcp: refused")), http.StatusBadGateway},
		{"not found", NotFound(), http.StatusNotFound},
		{"bad request passes through", Generic(http.StatusBadRequest, "Only CSV files are supported"), http.StatusBadRequest},
		{"upstream 500", Generic(http.StatusInternalServerError, "boom"), http.StatusBadGateway},
		{"non api error", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("status=%d want %d", got, tc.want)
			}
		})
	}
}

func TestUnreachableMessage(t *testing.T) {
	err := Unreachable(errors.New("connection refused"))
	if err.Error() != MsgServerUnreachable {
		t.Fatalf("message=%q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("expected unwrap to cause")
	}
}
