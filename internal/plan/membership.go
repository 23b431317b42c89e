package plan

import "github.com/roach88/pxflux/internal/tree"

// InvitationAccount returns the target account id of an invitation.
func InvitationAccount(inv tree.Node) string {
	return tree.String(tree.AsNode(inv["account"]), "id")
}

// InvitationCreated links a new invitation into its account.
func InvitationCreated(invitationID string, inv tree.Node) Plan {
	var p Plan
	if acct := InvitationAccount(inv); acct != "" {
		p.Add(SetOp(tree.Join("accounts", acct, "invitations", invitationID), true))
	}
	return p
}

// InvitationDeleted unlinks a removed invitation from its account.
func InvitationDeleted(invitationID string, inv tree.Node) Plan {
	var p Plan
	if acct := InvitationAccount(inv); acct != "" {
		p.Add(RemoveOp(tree.Join("accounts", acct, "invitations", invitationID)))
	}
	return p
}

// InvitationAccepted turns an invitation carrying a user into account
// membership and consumes the invitation.
func InvitationAccepted(invitationID string, inv tree.Node) Plan {
	var p Plan
	user := tree.AsNode(inv["user"])
	acct := InvitationAccount(inv)
	uid := tree.String(user, "uid")
	if user == nil || acct == "" || uid == "" {
		return p
	}
	p.Add(
		RemoveOp(tree.Join("invitations", invitationID)),
		SetOp(tree.Join("accounts", acct, "users", uid), profile(user["displayName"], user["photoUrl"])),
	)
	return p
}

// UserDeleted removes the user from every account it belonged to.
func UserDeleted(userID string, before tree.Node) Plan {
	var p Plan
	for _, acct := range tree.Keys(before, "accounts") {
		p.Add(RemoveOp(tree.Join("accounts", acct, "users", userID)))
	}
	return p
}

// Signup describes a new non-player identity.
type Signup struct {
	UID         string
	AccountID   string
	DisplayName string
	PhotoURL    string
	Now         int64
}

// AuthUserCreated seeds the default account for a signup. The claims write
// and metadata refresh happen after this plan has been applied.
func AuthUserCreated(s Signup) Plan {
	var p Plan
	member := profile(s.DisplayName, s.PhotoURL)
	member["ts"] = s.Now
	p.Add(
		SetOp(tree.Join("accounts", s.AccountID, "title"), DefaultAccountTitle),
		SetOp(tree.Join("accounts", s.AccountID, "users", s.UID), member),
		SetOp(tree.Join("users", s.UID, "accounts", s.AccountID), tree.Node{"title": DefaultAccountTitle}),
	)
	return *p.Critical()
}

// AuthUserDeleted drops the user's profile and session metadata.
func AuthUserDeleted(uid string) Plan {
	var p Plan
	p.Add(
		RemoveOp(tree.Join("users", uid)),
		RemoveOp(MetadataPath(uid)),
	)
	return p
}

// MetadataPath holds the token refresh marker clients watch.
func MetadataPath(uid string) string {
	return tree.Join("metadata", uid)
}

// ClaimsRefreshed tells clients to refresh their token. accountID is
// recorded when non-empty.
func ClaimsRefreshed(uid, accountID string, now int64) Plan {
	var p Plan
	meta := tree.Node{"refreshTime": now}
	if accountID != "" {
		meta["accountId"] = accountID
	}
	p.Add(SetOp(MetadataPath(uid), meta))
	return *p.Critical()
}

// profile always carries displayName so a member entry is never empty.
func profile(displayName, photoURL any) tree.Node {
	if displayName == nil {
		displayName = ""
	}
	n := tree.Node{"displayName": displayName}
	if photoURL != nil && photoURL != "" {
		n["photoUrl"] = photoURL
	}
	return n
}
