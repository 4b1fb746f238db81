package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
)

// DescriptionStore is the persistence side used by PersistentDescriptionLookup.
type DescriptionStore interface {
	Get(ctx context.Context, name string) (*DescriptionEntry, error)
	Upsert(ctx context.Context, entry *DescriptionEntry) error
}

// PersistentDescriptionLookup answers from the store first and writes
// upstream hits back to it. Entries older than maxAge are refreshed.
type PersistentDescriptionLookup struct {
	store    DescriptionStore
	upstream domain.DescriptionLookup
	source   string
	maxAge   time.Duration
	log      *logrus.Logger
	now      func() time.Time
}

// NewPersistentDescriptionLookup wraps upstream with a persistent store.
// A zero maxAge keeps entries forever.
func NewPersistentDescriptionLookup(store DescriptionStore, upstream domain.DescriptionLookup, source string, maxAge time.Duration, logger *logrus.Logger) *PersistentDescriptionLookup {
	return &PersistentDescriptionLookup{
		store:    store,
		upstream: upstream,
		source:   source,
		maxAge:   maxAge,
		log:      logger,
		now:      time.Now,
	}
}

// LookupDescription implements domain.DescriptionLookup. Store failures are
// logged and fall through to the upstream lookup.
func (p *PersistentDescriptionLookup) LookupDescription(ctx context.Context, name string) (string, bool) {
	entry, err := p.store.Get(ctx, name)
	switch {
	case err == nil:
		if p.maxAge <= 0 || p.now().Sub(entry.FetchedAt) < p.maxAge {
			return entry.Description, true
		}
	case !errors.Is(err, domain.ErrNotFound):
		p.log.WithFields(logrus.Fields{"ingredient": name, "error": err}).Warn("Description store read failed")
	}

	if p.upstream == nil {
		if entry != nil {
			return entry.Description, true
		}
		return "", false
	}

	desc, ok := p.upstream.LookupDescription(ctx, name)
	if !ok {
		if entry != nil {
			return entry.Description, true
		}
		return "", false
	}

	if err := p.store.Upsert(ctx, &DescriptionEntry{
		Name:        name,
		Description: desc,
		Source:      p.source,
		FetchedAt:   p.now().UTC(),
	}); err != nil {
		p.log.WithFields(logrus.Fields{"ingredient": name, "error": err}).Warn("Failed to persist description")
	}
	return desc, true
}
