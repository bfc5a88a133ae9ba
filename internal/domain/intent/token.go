package intent

// TokenShape decides which gateway verification path applies on return.
type TokenShape string

const (
	// ShapeSession is a gateway-issued session id; the gateway holds the draft.
	ShapeSession TokenShape = "session"
	// ShapeActor carries only the actor id; the draft comes from the tiers.
	ShapeActor TokenShape = "actor"
)

// Token binds one draft to one actor and one payment attempt.
type Token struct {
	Shape TokenShape
	Value string
}

// SessionToken returns a session-shaped token.
func SessionToken(sessionID string) Token {
	return Token{Shape: ShapeSession, Value: sessionID}
}

// ActorToken returns an actor-shaped token.
func ActorToken(actorID string) Token {
	return Token{Shape: ShapeActor, Value: actorID}
}

// Key returns a shape-qualified key, stable across processes.
func (t Token) Key() string {
	return string(t.Shape) + ":" + t.Value
}

// IsZero reports whether t carries no value.
func (t Token) IsZero() bool {
	return t.Value == ""
}
