package domain

import "strings"

// Participant is the decoded form of a "userId:username" token.
type Participant struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// EncodeParticipant builds the stored token form. Usernames are not
// colon-escaped; decoding relies on the first colon only.
func EncodeParticipant(userID, username string) string {
	return userID + ":" + username
}

// DecodeParticipant splits a token on its first colon. A token without a
// colon is a bare user id with no username; extra colons belong to the
// username.
func DecodeParticipant(token string) Participant {
	id, name, found := strings.Cut(token, ":")
	if !found {
		return Participant{UserID: token}
	}
	return Participant{UserID: id, Username: name}
}

// NormalizeID reduces any identity form (bare id, "id:", full token) to
// the bare user id used for every equality check in the lifecycle logic.
func NormalizeID(token string) string {
	id, _, _ := strings.Cut(strings.TrimSpace(token), ":")
	return id
}
