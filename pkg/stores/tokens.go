package stores

import (
	"context"

	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// Tokens holds the despair and cheers counters. Only the GM changes them.
type Tokens struct {
	*Store[models.Tokens]
}

func NewTokens(mgr *syncmgr.Manager) (*Tokens, error) {
	s, err := New(mgr, envelope.DomainTokens, WithNormalize(clampTokens))
	if err != nil {
		return nil, err
	}
	return &Tokens{Store: s}, nil
}

func clampTokens(t *models.Tokens) {
	if t.Despair < 0 {
		t.Despair = 0
	}
	if t.Cheers < 0 {
		t.Cheers = 0
	}
}

// AdjustDespair adds delta to despair, never going below zero.
func (t *Tokens) AdjustDespair(ctx context.Context, delta int) error {
	return t.Update(ctx, func(v *models.Tokens) error {
		v.Despair += delta
		return nil
	})
}

// AdjustCheers adds delta to cheers, never going below zero.
func (t *Tokens) AdjustCheers(ctx context.Context, delta int) error {
	return t.Update(ctx, func(v *models.Tokens) error {
		v.Cheers += delta
		return nil
	})
}
