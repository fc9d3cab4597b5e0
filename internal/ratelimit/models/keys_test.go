package models

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// KeySecuritySuite covers key construction.
//
// Justification: Key collision attacks could let a client manipulate another
// client's window by crafting identifiers containing delimiter characters.
type KeySecuritySuite struct {
	suite.Suite
}

func TestKeySecuritySuite(t *testing.T) {
	suite.Run(t, new(KeySecuritySuite))
}

func (s *KeySecuritySuite) TestKeyFormat() {
	s.Equal("rl:auth:1.2.3.4", Key(ProfileAuth, "1.2.3.4"))
	s.Equal("rl:general:unknown", Key(ProfileGeneral, "unknown"))
}

func (s *KeySecuritySuite) TestKeyCollisionAttack() {
	s.Run("colon in identifier cannot address another profile", func() {
		forged := Key(ProfileAuth, "x:rl:api:1.2.3.4")
		s.NotContains(forged, "rl:api:")
	})

	s.Run("ipv6 identifiers keep a single segment", func() {
		s.Equal("rl:api:2001_cdb8_c_c1", Key(ProfileAPI, "2001:db8::1"))
	})

	s.Run("escaping is injective", func() {
		inputs := []string{"a:b", "a_cb", "a_:b", "a__cb", "a_b", "a__b"}
		seen := make(map[string]string)
		for _, in := range inputs {
			key := Key(ProfileAPI, in)
			if prev, ok := seen[key]; ok {
				s.Failf("collision", "%q and %q both map to %q", prev, in, key)
			}
			seen[key] = in
		}
	})

	s.Run("profiles are independent for the same client", func() {
		s.NotEqual(Key(ProfileAuth, "1.2.3.4"), Key(ProfileAPI, "1.2.3.4"))
	})
}
