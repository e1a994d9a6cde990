package interpret

import (
	"encoding/json"
	"errors"

	"voicecue/log"
	"voicecue/metrics"
)

type Kind int

const (
	KindFinal Kind = iota
	KindClarification
)

func (k Kind) String() string {
	if k == KindClarification {
		return "clarification"
	}
	return "final"
}

// Outcome is the classification of one server message.
type Outcome struct {
	Kind     Kind
	Text     string   // clarification text
	ResultID ResultID // final result, valid when Resolved
	Resolved bool
	Missing  []error // one NoResourceError per suppressed output
}

// Resolver extracts the result id of a final message.
type Resolver interface {
	Resolve(msg ServerMessage) (ResultID, bool)
}

type ResolverFunc func(msg ServerMessage) (ResultID, bool)

func (f ResolverFunc) Resolve(msg ServerMessage) (ResultID, bool) { return f(msg) }

// FieldResolver reads resultId from the message and uses Fallback, if set,
// when the field is absent.
type FieldResolver struct {
	Fallback ResultID
}

func (r FieldResolver) Resolve(msg ServerMessage) (ResultID, bool) {
	if id, ok := msg.Result(); ok {
		return id, true
	}
	if r.Fallback != "" {
		return r.Fallback, true
	}
	return "", false
}

// Player starts a sound and returns without waiting for it to finish.
type Player interface {
	Play(s Sound)
}

// Animator swaps the idle control for the result picture.
type Animator interface {
	Animate(id ResultID, a Animation)
}

type Options struct {
	Resources *Resources
	Resolver  Resolver
	Player    Player
	Animator  Animator
	Metrics   *metrics.Metrics
	// OnOutcome, when set, is called after every handled message.
	OnOutcome func(Outcome, PresentationState)
}

type Interpreter struct {
	resources *Resources
	resolver  Resolver
	player    Player
	animator  Animator
	metrics   *metrics.Metrics
	onOutcome func(Outcome, PresentationState)
	state     Presentation
}

func New(opts Options) *Interpreter {
	in := &Interpreter{
		resources: opts.Resources,
		resolver:  opts.Resolver,
		player:    opts.Player,
		animator:  opts.Animator,
		metrics:   opts.Metrics,
		onOutcome: opts.OnOutcome,
	}
	if in.resources == nil {
		in.resources = DefaultResources()
	}
	if in.resolver == nil {
		in.resolver = FieldResolver{}
	}
	if in.metrics == nil {
		in.metrics = metrics.Default
	}
	return in
}

// Interpret classifies msg without touching any output.
func (in *Interpreter) Interpret(msg ServerMessage) Outcome {
	if msg.IsClarification() {
		return Outcome{Kind: KindClarification, Text: FormatArguments(msg.Arguments)}
	}

	out := Outcome{Kind: KindFinal}
	out.ResultID, out.Resolved = in.resolver.Resolve(msg)
	if _, ok := in.resources.Sound(out.ResultID); !ok || !out.Resolved {
		out.Missing = append(out.Missing, &NoResourceError{Table: TableSound, ID: out.ResultID})
	}
	if _, ok := in.resources.Animation(out.ResultID); !ok || !out.Resolved {
		out.Missing = append(out.Missing, &NoResourceError{Table: TableAnimation, ID: out.ResultID})
	}
	return out
}

// Handle classifies msg and drives the presentation. It does not depend on any
// recording being in progress.
func (in *Interpreter) Handle(msg ServerMessage) Outcome {
	out := in.Interpret(msg)
	in.metrics.Responses.WithLabelValues(out.Kind.String()).Inc()
	log.Response(out.Kind.String(), string(out.ResultID), msg.Raw)

	switch out.Kind {
	case KindClarification:
		in.state.Clarify(out.Text)

	case KindFinal:
		if out.Resolved {
			in.state.SetResult(out.ResultID)
		}
		for _, err := range out.Missing {
			var nr *NoResourceError
			if errors.As(err, &nr) {
				log.MissingResource(nr.Table, string(nr.ID))
				in.metrics.MissingResources.WithLabelValues(nr.Table).Inc()
			}
		}
		if out.Resolved {
			if s, ok := in.resources.Sound(out.ResultID); ok && in.player != nil {
				in.player.Play(s)
			}
			if a, ok := in.resources.Animation(out.ResultID); ok && in.animator != nil {
				in.animator.Animate(out.ResultID, a)
			}
		}
	}

	if in.onOutcome != nil {
		in.onOutcome(out, in.state.Snapshot())
	}
	return out
}

// HandleRaw decodes a serverResponse payload and handles it. Malformed
// payloads are logged and dropped.
func (in *Interpreter) HandleRaw(data json.RawMessage) {
	msg, err := ParseMessage(data)
	if err != nil {
		log.Warnf("interpret: %v", err)
		return
	}
	in.Handle(msg)
}

func (in *Interpreter) State() PresentationState {
	return in.state.Snapshot()
}

// ClearClarification dismisses the pending question, e.g. once the user has
// read it.
func (in *Interpreter) ClearClarification() {
	in.state.Dismiss()
}
