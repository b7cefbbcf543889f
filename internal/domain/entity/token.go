// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

// TokenPair carries a freshly minted access/refresh token couple.
// Pairs are transient: the access token is never persisted and only the
// refresh token's value is stored, on the owning User record.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
