package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type state struct{ loading, authed bool }

func (s state) Loading() bool         { return s.loading }
func (s state) IsAuthenticated() bool { return s.authed }

func TestDecide(t *testing.T) {
	cases := []struct {
		name  string
		state state
		kind  Kind
		want  Decision
	}{
		{"protected loading", state{loading: true}, Protected, Decision{Outcome: Wait}},
		{"protected loading authed", state{loading: true, authed: true}, Protected, Decision{Outcome: Wait}},
		{"protected anonymous", state{}, Protected, Decision{Outcome: Redirect, Target: LoginRoute}},
		{"protected authed", state{authed: true}, Protected, Decision{Outcome: Render}},
		{"public loading", state{loading: true}, Public, Decision{Outcome: Wait}},
		{"public anonymous", state{}, Public, Decision{Outcome: Render}},
		{"public authed", state{authed: true}, Public, Decision{Outcome: Redirect, Target: HomeRoute}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.state, tc.kind))
		})
	}
}
