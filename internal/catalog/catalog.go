// Package catalog owns the local file catalog: which files this peer knows
// about, their MIME types and whether peers may see them.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/apperr"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/internal/storage"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

// Catalog applies the upsert policy on top of a Store.
type Catalog struct {
	store   Store
	fs      storage.Backend
	sniffer Sniffer
	log     *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSniffer replaces the signature detector.
func WithSniffer(s Sniffer) Option {
	return func(c *Catalog) { c.sniffer = s }
}

// New creates a Catalog reading file content through fs.
func New(store Store, fs storage.Backend, opts ...Option) *Catalog {
	c := &Catalog{
		store:   store,
		fs:      fs,
		sniffer: FiletypeSniffer{},
		log:     logging.Named("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert inserts new drafts and updates the visibility of known ones, then
// returns the whole catalog. A known draft is one whose id is cataloged, or
// one without an id whose path is. Every known draft is applied before any
// insert. A new draft whose path is already cataloged, or repeats the path of
// an earlier new draft, is skipped. A new draft without an id gets a fresh one.
func (c *Catalog) Upsert(ctx context.Context, drafts []models.FileDraft) ([]models.FileRecord, error) {
	const op = "catalog.upsert"

	current, err := c.store.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.CatalogError, op, err)
	}
	byPath := make(map[string]uuid.UUID, len(current))
	for _, rec := range current {
		if _, ok := byPath[rec.Path]; !ok {
			byPath[rec.Path] = rec.ID
		}
	}

	var fresh []models.FileDraft
	for _, d := range drafts {
		vis, err := draftVisibility(d)
		if err != nil {
			return nil, apperr.E(apperr.CatalogError, op, err)
		}
		d.Visibility = vis

		id := d.ID
		if id == uuid.Nil && d.Path != "" {
			id = byPath[d.Path]
		}
		if id != uuid.Nil {
			existing, err := c.store.Get(ctx, id)
			if err != nil {
				return nil, apperr.E(apperr.CatalogError, op, err)
			}
			if existing != nil {
				if _, err := c.store.SetVisibility(ctx, id, vis); err != nil {
					return nil, apperr.E(apperr.CatalogError, op, err)
				}
				continue
			}
		}
		fresh = append(fresh, d)
	}

	seen := make(map[string]bool, len(byPath)+len(fresh))
	for p := range byPath {
		seen[p] = true
	}
	for _, d := range fresh {
		key := d.Path
		if key == "" {
			key = d.ID.String()
		}
		if seen[key] {
			c.log.Debug("skipping duplicate draft", zap.String("path", d.Path))
			continue
		}
		seen[key] = true

		if err := c.insert(ctx, d); err != nil {
			return nil, err
		}
	}
	return c.List(ctx)
}

// draftVisibility validates d's visibility. Empty means public.
func draftVisibility(d models.FileDraft) (models.Visibility, error) {
	if d.Visibility == "" {
		return models.Public, nil
	}
	return models.ParseVisibility(string(d.Visibility))
}

func (c *Catalog) insert(ctx context.Context, d models.FileDraft) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	name, mime, err := c.classify(ctx, d.Name, d.Path)
	if err != nil {
		return err
	}
	rec := models.FileRecord{ID: d.ID, Name: name, Mime: mime, Visibility: d.Visibility, Path: d.Path}
	if err := c.store.Insert(ctx, rec); err != nil {
		return apperr.E(apperr.CatalogError, "catalog.upsert", err)
	}
	c.log.Debug("file cataloged",
		zap.String("id", rec.ID.String()),
		zap.String("name", rec.Name),
		zap.String("mime", rec.Mime))
	return nil
}

// classify finalizes the display name and MIME type of a new record.
func (c *Catalog) classify(ctx context.Context, name, path string) (string, string, error) {
	if ext, ok := splitExtension(name); ok {
		return name, MimeForExtension(ext), nil
	}

	head, err := storage.ReadHead(ctx, c.fs, path, SniffLen)
	if err != nil {
		return "", "", asFilesystemError("catalog.sniff", err)
	}
	ext, mime, ok := c.sniffer.Sniff(head)
	if !ok {
		return name, DefaultMime, nil
	}
	return name + "." + ext, mime, nil
}

// SetVisibility changes one record's visibility.
func (c *Catalog) SetVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) error {
	const op = "catalog.visibility"
	if _, err := models.ParseVisibility(string(v)); err != nil {
		return apperr.E(apperr.CatalogError, op, err)
	}
	found, err := c.store.SetVisibility(ctx, id, v)
	if err != nil {
		return apperr.E(apperr.CatalogError, op, err)
	}
	if !found {
		return apperr.Errorf(apperr.NotFound, op, "no file %s", id)
	}
	return nil
}

// Delete removes exactly one record.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	found, err := c.store.Delete(ctx, id)
	if err != nil {
		return apperr.E(apperr.CatalogError, "catalog.delete", err)
	}
	if !found {
		return apperr.Errorf(apperr.NotFound, "catalog.delete", "no file %s", id)
	}
	c.refreshGauge(ctx)
	return nil
}

// List returns every record regardless of visibility.
func (c *Catalog) List(ctx context.Context) ([]models.FileRecord, error) {
	recs, err := c.store.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.CatalogError, "catalog.list", err)
	}
	setGauge(recs)
	return recs, nil
}

// Public returns the peer-facing summaries of public records.
func (c *Catalog) Public(ctx context.Context) ([]protocol.FileSummary, error) {
	recs, err := c.store.ListPublic(ctx)
	if err != nil {
		return nil, apperr.E(apperr.CatalogError, "catalog.public", err)
	}
	out := make([]protocol.FileSummary, len(recs))
	for i, r := range recs {
		out[i] = r.Summary()
	}
	return out, nil
}

// PublicRecord returns the record for id if it exists and is public.
func (c *Catalog) PublicRecord(ctx context.Context, id uuid.UUID) (models.FileRecord, error) {
	rec, err := c.store.GetPublic(ctx, id)
	if err != nil {
		return models.FileRecord{}, apperr.E(apperr.CatalogError, "catalog.get", err)
	}
	if rec == nil {
		return models.FileRecord{}, apperr.Errorf(apperr.NotFound, "catalog.get", "no public file %s", id)
	}
	return *rec, nil
}

// Exists reports whether path can still be read.
func (c *Catalog) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := storage.Exists(ctx, c.fs, path)
	if err != nil {
		return false, asFilesystemError("catalog.exists", err)
	}
	return ok, nil
}

// Prune deletes records whose content is gone and returns them. Records whose
// existence cannot be determined are kept.
func (c *Catalog) Prune(ctx context.Context) ([]models.FileRecord, error) {
	recs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []models.FileRecord
	for _, rec := range recs {
		ok, err := c.Exists(ctx, rec.Path)
		if err != nil {
			c.log.Warn("cannot check file", zap.String("path", rec.Path), zap.Error(err))
			continue
		}
		if ok {
			continue
		}
		if _, err := c.store.Delete(ctx, rec.ID); err != nil {
			return removed, apperr.E(apperr.CatalogError, "catalog.prune", err)
		}
		removed = append(removed, rec)
		c.log.Info("pruned missing file", zap.String("name", rec.Name), zap.String("path", rec.Path))
	}
	c.refreshGauge(ctx)
	return removed, nil
}

// Close closes the store.
func (c *Catalog) Close() error {
	return c.store.Close()
}

func (c *Catalog) refreshGauge(ctx context.Context) {
	if recs, err := c.store.List(ctx); err == nil {
		setGauge(recs)
	}
}

func setGauge(recs []models.FileRecord) {
	public := 0
	for _, r := range recs {
		if r.Visibility == models.Public {
			public++
		}
	}
	metrics.SetCatalogSize(public, len(recs)-public)
}

func asFilesystemError(op string, err error) error {
	if apperr.KindOf(err) != 0 {
		return err
	}
	return apperr.E(apperr.FilesystemError, op, err)
}
