package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/config"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
	"github.com/snipforge/snipforge/internal/storage"
)

// PasteService is the content-blob store. The versioning core passes paste
// IDs through it untouched; only this service knows how bodies are encoded.
type PasteService struct {
	db          database.DB
	store       storage.Backend
	compressMin int64
	externalMin int64
	enc         *zstd.Encoder
	dec         *zstd.Decoder
}

func NewPasteService(db database.DB, store storage.Backend, cfg config.PasteConfig) (*PasteService, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &PasteService{
		db:          db,
		store:       store,
		compressMin: cfg.CompressMinBytes,
		externalMin: cfg.ExternalMinBytes,
		enc:         enc,
		dec:         dec,
	}, nil
}

func (s *PasteService) Create(ctx context.Context, ownerID int64, title, body, language string) (*models.Paste, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Validationf("paste body is required")
	}

	data := []byte(body)
	paste := &models.Paste{
		Slug:      uuid.NewString(),
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(title),
		Language:  strings.TrimSpace(language),
		Encoding:  models.PasteEncodingPlain,
		SizeBytes: int64(len(data)),
	}

	switch {
	case s.store != nil && s.externalMin > 0 && int64(len(data)) >= s.externalMin:
		key := "pastes/" + paste.Slug
		if err := s.store.Put(ctx, key, data); err != nil {
			return nil, apperr.Wrap(apperr.Transaction, err, "offload paste body")
		}
		paste.Encoding = models.PasteEncodingExternal
		paste.StorageKey = key
	case s.compressMin > 0 && int64(len(data)) >= s.compressMin:
		compressed := s.enc.EncodeAll(data, nil)
		// Incompressible bodies stay plain.
		if len(compressed) < len(data) {
			paste.Encoding = models.PasteEncodingZstd
			paste.RawBody = compressed
		} else {
			paste.RawBody = data
		}
	default:
		paste.RawBody = data
	}

	if err := s.db.CreatePaste(ctx, paste); err != nil {
		// A failed insert must not leave an orphaned external blob behind.
		if paste.StorageKey != "" {
			_ = s.store.Delete(ctx, paste.StorageKey)
		}
		return nil, storeErr(err, "paste")
	}
	paste.Body = body
	return paste, nil
}

func (s *PasteService) Get(ctx context.Context, id int64) (*models.Paste, error) {
	paste, err := s.db.GetPasteByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "paste")
	}
	return s.materialize(ctx, paste)
}

func (s *PasteService) GetBySlug(ctx context.Context, slug string) (*models.Paste, error) {
	paste, err := s.db.GetPasteBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr(err, "paste")
	}
	return s.materialize(ctx, paste)
}

// materialize resolves the stored body into paste.Body regardless of how it
// was encoded at write time.
func (s *PasteService) materialize(ctx context.Context, paste *models.Paste) (*models.Paste, error) {
	switch paste.Encoding {
	case models.PasteEncodingZstd:
		data, err := s.dec.DecodeAll(paste.RawBody, nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.Transaction, err, "decompress paste %s", paste.Slug)
		}
		paste.Body = string(data)
	case models.PasteEncodingExternal:
		if s.store == nil {
			return nil, apperr.New(apperr.Transaction, "paste %s is offloaded but no storage backend is configured", paste.Slug)
		}
		data, err := s.store.Get(ctx, paste.StorageKey)
		if err != nil {
			return nil, apperr.Wrap(apperr.Transaction, err, "fetch paste %s", paste.Slug)
		}
		paste.Body = string(data)
	default:
		paste.Body = string(paste.RawBody)
	}
	return paste, nil
}
