package flows

import (
	"errors"
	"time"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/internal/challenge"
	"github.com/MrEthical07/staysafe/internal/limiters"
)

var (
	// ErrLocked is returned for every event applied to a locked account.
	ErrLocked = errors.New("account locked")
	// ErrCredentialRejected is returned after a rejected credential has been
	// counted.
	ErrCredentialRejected = errors.New("credential rejected")
	errUnknownEvent       = errors.New("unknown security event")
)

// EventKind enumerates the inputs of the security state machine.
type EventKind uint8

const (
	// EventChallengeIssued opens the first challenge for a new account.
	EventChallengeIssued EventKind = iota + 1
	// EventCredentialAccepted is a matching password; a challenge follows.
	EventCredentialAccepted
	// EventCredentialRejected is a non-matching password.
	EventCredentialRejected
	// EventChallengeSubmitted carries a submitted one-time code.
	EventChallengeSubmitted
)

func (k EventKind) String() string {
	switch k {
	case EventChallengeIssued:
		return "challenge_issued"
	case EventCredentialAccepted:
		return "credential_accepted"
	case EventCredentialRejected:
		return "credential_rejected"
	case EventChallengeSubmitted:
		return "challenge_submitted"
	default:
		return "unknown"
	}
}

// Event is one input to Machine.Apply.
type Event struct {
	Kind EventKind
	Code string
}

// Transition describes what Apply did.
type Transition struct {
	From accounts.SecurityState
	To   accounts.SecurityState
	// Code is the plaintext challenge when one was issued. It must be handed
	// to the delivery channel and then dropped.
	Code string
	// LockedNow is set when this event triggered a new lock.
	LockedNow bool
}

// Machine applies security events to account records.
type Machine struct {
	Lockout    limiters.Lockout
	Challenges *challenge.Manager
}

// Apply runs one event against a. A locked account rejects every event
// before any comparison and is left untouched. The returned error is the
// domain outcome; when it is ErrCredentialRejected or challenge.ErrMismatch
// the account still carries the counted failure and must be persisted.
func (m Machine) Apply(a *accounts.Account, ev Event, now time.Time) (Transition, error) {
	tr := Transition{From: a.State(now)}
	if tr.From == accounts.StateLocked {
		tr.To = tr.From
		return tr, ErrLocked
	}

	var err error
	switch ev.Kind {
	case EventChallengeIssued, EventCredentialAccepted:
		tr.Code, err = m.Challenges.Issue(a, now)
	case EventCredentialRejected:
		tr.LockedNow = m.Lockout.RecordFailure(a, now)
		err = ErrCredentialRejected
	case EventChallengeSubmitted:
		err = m.Challenges.Verify(a, ev.Code, now)
		switch {
		case err == nil:
			m.Lockout.RecordSuccess(a)
		case errors.Is(err, challenge.ErrMismatch):
			tr.LockedNow = m.Lockout.RecordFailure(a, now)
		}
	default:
		err = errUnknownEvent
	}

	tr.To = a.State(now)
	return tr, err
}

// Persist reports whether the account must be written back after Apply
// returned err.
func Persist(err error) bool {
	return err == nil || errors.Is(err, ErrCredentialRejected) || errors.Is(err, challenge.ErrMismatch)
}
