package keygen

import (
	"github.com/oodx/padlock/internal/authority"
	"github.com/oodx/padlock/internal/perr"
)

// defaultLength returns the key_length a tier helper pins when the caller
// does not override it: the tier's own floor.
func defaultLength(t authority.KeyType, requested int) int {
	if requested > 0 {
		return requested
	}
	return t.LengthFloor()
}

// GenerateSkull mints a new root key. Skull keys are self-proved and have no
// parent.
func (g *Generator) GenerateSkull(params Params) (authority.Key, authority.Proof, error) {
	params.Type = authority.Skull
	params.KeyLength = defaultLength(authority.Skull, params.KeyLength)
	return g.Generate(nil, params)
}

// GenerateMaster mints a Master key under skull. The parent-type assertion
// fails before any randomness is consumed, matching the spec's tier-helper
// contract.
func (g *Generator) GenerateMaster(skull authority.Key, params Params) (authority.Key, authority.Proof, error) {
	if skull.Type != authority.Skull {
		return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
			Operation: "generate_master",
			Reason:    "Parent must be skull key",
		}
	}
	params.Type = authority.Master
	params.KeyLength = defaultLength(authority.Master, params.KeyLength)
	return g.Generate(&skull, params)
}

// GenerateRepo mints a Repo key under master, scoped to repoPath via the
// caller-supplied Purpose if none was set.
func (g *Generator) GenerateRepo(master authority.Key, repoPath string, params Params) (authority.Key, authority.Proof, error) {
	if master.Type != authority.Master {
		return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
			Operation: "generate_repo",
			Reason:    "Parent must be master key",
		}
	}
	params.Type = authority.Repo
	params.KeyLength = defaultLength(authority.Repo, params.KeyLength)
	if params.Purpose == "" {
		params.Purpose = repoPath
	}
	return g.Generate(&master, params)
}

// GenerateIgnition mints an Ignition key under a Repo key.
func (g *Generator) GenerateIgnition(repo authority.Key, params Params) (authority.Key, authority.Proof, error) {
	if repo.Type != authority.Repo {
		return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
			Operation: "generate_ignition",
			Reason:    "Parent must be repo key",
		}
	}
	params.Type = authority.Ignition
	params.KeyLength = defaultLength(authority.Ignition, params.KeyLength)
	return g.Generate(&repo, params)
}

// GenerateDistro mints a Distro key under an Ignition key, the bottom tier.
func (g *Generator) GenerateDistro(ignition authority.Key, params Params) (authority.Key, authority.Proof, error) {
	if ignition.Type != authority.Ignition {
		return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
			Operation: "generate_distro",
			Reason:    "Parent must be ignition key",
		}
	}
	params.Type = authority.Distro
	params.KeyLength = defaultLength(authority.Distro, params.KeyLength)
	return g.Generate(&ignition, params)
}
