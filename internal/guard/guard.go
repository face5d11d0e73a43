// Package guard decides whether a route may render for the current session.
package guard

// Routes the guard redirects to.
const (
	LoginRoute = "/login"
	HomeRoute  = "/"
)

// State is what the guard reads from the session store.
type State interface {
	Loading() bool
	IsAuthenticated() bool
}

// Kind selects the guard policy of a route.
type Kind int

const (
	// Protected routes need an authenticated session.
	Protected Kind = iota
	// Public routes are only for anonymous visitors (the login page).
	Public
)

// Outcome is the action the router takes.
type Outcome int

const (
	Render Outcome = iota
	Wait
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Wait:
		return "loading"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the guard result. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Decide never redirects while the session is still loading.
func Decide(s State, k Kind) Decision {
	if s.Loading() {
		return Decision{Outcome: Wait}
	}
	authed := s.IsAuthenticated()
	switch k {
	case Public:
		if authed {
			return Decision{Outcome: Redirect, Target: HomeRoute}
		}
	default:
		if !authed {
			return Decision{Outcome: Redirect, Target: LoginRoute}
		}
	}
	return Decision{Outcome: Render}
}
