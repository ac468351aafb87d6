package stores

import (
	"context"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
)

// Profiles reads user profiles with one-shot lookups.
type Profiles struct {
	remote remote.Service
}

// NewProfiles builds the reader.
func NewProfiles(deps Deps) *Profiles {
	return &Profiles{remote: deps.Remote}
}

// Get returns the profile with id. A missing profile is a NotFoundError.
func (p *Profiles) Get(ctx context.Context, id string) (model.Profile, error) {
	if id == "" {
		return model.Profile{}, apperr.Invalid("id", "profile id is required")
	}
	doc, err := p.remote.GetOne(ctx, remote.Profiles, id)
	if err != nil {
		return model.Profile{}, err
	}
	return model.DecodeProfile(doc)
}
