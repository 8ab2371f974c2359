package users

// reconcileOutcome is the decision for one incoming OAuth identity against
// the user currently holding its email, if any.
type reconcileOutcome int

const (
	// reconcileCreate inserts a new verified account for the identity.
	reconcileCreate reconcileOutcome = iota
	// reconcileReturnExisting returns the matched account unchanged.
	reconcileReturnExisting
	// reconcileLink attaches the provider identity to a local account.
	reconcileLink
	// reconcileConflict rejects the login under strict linking.
	reconcileConflict
)

// reconcileOAuth applies the reconciliation policy, keyed by email:
//
//   - no existing user: create
//   - same (provider, provider_id): return as-is, idempotent re-login
//   - local account: link the provider onto it
//   - different non-local provider: Conflict under strict linking, otherwise
//     attempt a create and let the email unique constraint decide
func reconcileOAuth(existing *User, identity OAuthIdentity, strict bool) reconcileOutcome {
	if existing == nil {
		return reconcileCreate
	}
	if existing.Provider == identity.Provider &&
		existing.ProviderID != nil && *existing.ProviderID == identity.ProviderID {
		return reconcileReturnExisting
	}
	if existing.IsLocal() {
		return reconcileLink
	}
	if strict {
		return reconcileConflict
	}
	return reconcileCreate
}

// linkProfile merges the provider profile onto the current record when
// linking. Values the user already set win; provider values only fill nulls.
func linkProfile(existing *User, identity OAuthIdentity) (displayName, avatarURL *string) {
	displayName = existing.DisplayName
	if displayName == nil {
		displayName = identity.DisplayName
	}
	avatarURL = existing.AvatarURL
	if avatarURL == nil {
		avatarURL = identity.AvatarURL
	}
	return displayName, avatarURL
}
