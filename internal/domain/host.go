package domain

import "strings"

// MatchType is the tier of identity evidence behind a host decision,
// ordered by descending trust.
type MatchType string

const (
	// MatchAuthID means the server-verified session id equals the creator id.
	MatchAuthID MatchType = "auth_id_match"
	// MatchUserID means the client-claimed user id equals the creator id.
	MatchUserID MatchType = "user_id_match"
	// MatchParam means the client-echoed created_by parameter equals the
	// creator id. Trivially spoofable; lowest tier.
	MatchParam MatchType = "param_match"
	// MatchNone means no candidate matched.
	MatchNone MatchType = "none"
)

// KnownMatchType reports whether m belongs to the match-type vocabulary
// accepted from clients (force-close re-verification).
func KnownMatchType(m MatchType) bool {
	switch m {
	case MatchAuthID, MatchUserID, MatchParam:
		return true
	}
	return false
}

// TestIDPrefix marks synthetic identities used by test tooling. The
// forced-cleanup fallback applies only to ids carrying this prefix.
const TestIDPrefix = "test-"

// HostCandidates carries every identity signal resolved for the acting
// user, one field per trust tier. Empty fields simply reduce the set.
// The detector never reads ambient state; callers resolve once per
// request and pass the result in.
type HostCandidates struct {
	AuthUserID     string
	ClaimedUserID  string
	CreatedByParam string
}

// HostDecision is the outcome of DetectHost.
type HostDecision struct {
	IsHost            bool      `json:"isHost"`
	MatchType         MatchType `json:"matchType"`
	IsLastParticipant bool      `json:"isLastParticipant"`
}

// DetectHost decides whether the acting user is the room's host. Tiers
// are checked in descending trust order and the first match wins, so a
// forged low-trust signal can never override a legitimate high-trust
// mismatch. The function always returns a decision.
func DetectHost(room *Room, c HostCandidates) HostDecision {
	dec := HostDecision{
		MatchType:         MatchNone,
		IsLastParticipant: len(room.Participants) <= 1,
	}
	creator := NormalizeID(room.CreatorID)
	if creator == "" {
		return dec
	}
	switch {
	case c.AuthUserID != "" && NormalizeID(c.AuthUserID) == creator:
		dec.IsHost = true
		dec.MatchType = MatchAuthID
	case c.ClaimedUserID != "" && NormalizeID(c.ClaimedUserID) == creator:
		dec.IsHost = true
		dec.MatchType = MatchUserID
	case c.CreatedByParam != "" && NormalizeID(c.CreatedByParam) == creator:
		dec.IsHost = true
		dec.MatchType = MatchParam
	}
	return dec
}

// AllowForcedCleanup reports whether the narrow test-only fallback
// applies: a synthetic (test-prefixed) identity that is also the last
// participant may force room cleanup even without a creator match.
// Ordinary users never qualify.
func AllowForcedCleanup(room *Room, c HostCandidates) bool {
	id := NormalizeID(c.ClaimedUserID)
	if !strings.HasPrefix(id, TestIDPrefix) {
		return false
	}
	return len(room.Participants) <= 1
}
