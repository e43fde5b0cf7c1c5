package auth

import (
	"sort"

	"guard-bot/model"
)

// ClaimStore is the persistence surface the resolver reads. Satisfied by
// database.ClaimRepository.
type ClaimStore interface {
	SearchActive(guildID string, roleIDs []string, userID string, filter []model.Claim) ([]model.ClaimMapping, error)
}

// Resolver computes the effective claim set for a subject from the stored
// grant/deny mappings. Results are computed per request and never cached
// across requests; every authorization check re-reads the source.
type Resolver struct {
	store     ClaimStore
	botUserID string
}

// NewResolver builds a resolver. botUserID is the bot's own account, which
// always resolves to all claims.
func NewResolver(store ClaimStore, botUserID string) *Resolver {
	return &Resolver{store: store, botUserID: botUserID}
}

// Resolve returns the claims the subject currently possesses in the guild.
// Role-scoped mappings apply before user-scoped mappings so user-level
// settings win, and within a scope Grants apply before Denies so a Deny at
// the same scope always wins. Absence of mappings yields an empty set,
// never an error.
func (r *Resolver) Resolve(guildID string, roleIDs []string, userID string, administrator bool, filter ...model.Claim) (model.ClaimSet, error) {
	if administrator || (r.botUserID != "" && userID == r.botUserID) {
		if len(filter) > 0 {
			return model.NewClaimSet(filter...), nil
		}
		return model.NewClaimSet(model.AllClaims()...), nil
	}

	mappings, err := r.store.SearchActive(guildID, roleIDs, userID, filter)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(mappings, func(i, j int) bool {
		if a, b := scopeOrder(mappings[i].SubjectKind), scopeOrder(mappings[j].SubjectKind); a != b {
			return a < b
		}
		return typeOrder(mappings[i].Type) < typeOrder(mappings[j].Type)
	})

	possessed := model.NewClaimSet()
	for _, m := range mappings {
		switch m.Type {
		case model.MappingGrant:
			possessed.Add(m.Claim)
		case model.MappingDeny:
			possessed.Remove(m.Claim)
		}
	}
	return possessed, nil
}

func scopeOrder(k model.SubjectKind) int {
	if k == model.SubjectRole {
		return 0
	}
	return 1
}

func typeOrder(t model.MappingType) int {
	if t == model.MappingGrant {
		return 0
	}
	return 1
}
