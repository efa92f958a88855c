package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

// MaxJustificationSize is the largest accepted upload, in bytes.
const MaxJustificationSize = 10 * 1024 * 1024

var allowedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

const storeAttempts = 5

// Upload is one incoming file.  Size is the size announced by the client;
// the stored size is measured while copying.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Vault stores provider justification documents on a filesystem and their
// metadata in the justification store.
type Vault struct {
	fs            afero.Fs
	dir           string
	eligibility   *Eligibility
	justification JustificationStore
	log           *zap.Logger
	now           func() time.Time
}

func NewVault(fsys afero.Fs, dir string, eligibility *Eligibility, store JustificationStore, log *zap.Logger, now func() time.Time) *Vault {
	if now == nil {
		now = time.Now
	}
	return &Vault{fs: fsys, dir: dir, eligibility: eligibility, justification: store, log: log, now: now}
}

// Upload validates and stores the file then records it.  No row is written
// unless the file is completely on disk.
func (v *Vault) Upload(ctx context.Context, providerID uint64, up Upload, description string) (*model.Justification, error) {
	if _, err := v.eligibility.Provider(ctx, providerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(up.Name)
	if name == "" || up.Content == nil {
		return nil, PreconditionFailed("missing file")
	}
	if up.Size == 0 {
		return nil, PreconditionFailed("empty file")
	}
	if up.Size > MaxJustificationSize {
		return nil, PreconditionFailed("file larger than 10 MiB")
	}
	ext := extension(name)
	if !allowedExtension(ext) {
		return nil, PreconditionFailed("file type not allowed (pdf, jpg, jpeg, png)")
	}

	if err := v.fs.MkdirAll(v.dir, 0o755); err != nil {
		return nil, Internal("create upload directory", err)
	}
	stored, written, err := v.store(ctx, providerID, ext, up.Content)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(description)
	if label == "" {
		label = name
	}
	j := &model.Justification{
		UserID:        providerID,
		FilePath:      stored,
		TypeLabel:     label,
		Comment:       fmt.Sprintf("Fichier: %s (Taille: %d bytes)", name, written),
		EffectiveFrom: v.now().UTC(),
	}
	if err := v.justification.Create(ctx, j); err != nil {
		v.remove(stored)
		return nil, Internal("store justification", err)
	}
	v.log.Info("justification uploaded",
		zap.Uint64("provider_id", providerID), zap.Uint64("justification_id", j.ID), zap.String("path", stored), zap.Int64("bytes", written))
	return j, nil
}

// store writes content to a new file named after the provider and the
// current millisecond.  An existing file is never replaced: the suffix is
// bumped instead.
func (v *Vault) store(ctx context.Context, providerID uint64, ext string, content io.Reader) (string, int64, error) {
	millis := v.now().UnixMilli()
	var (
		f      afero.File
		target string
		err    error
	)
	for i := 0; i < storeAttempts; i++ {
		target = filepath.Join(v.dir, fmt.Sprintf("justificatif_%d_%d%s", providerID, millis+int64(i), ext))
		f, err = v.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", 0, Internal("create justification file", err)
	}

	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: content}, MaxJustificationSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		v.remove(target)
		if ctx.Err() != nil {
			return "", 0, Internal("upload interrupted", ctx.Err())
		}
		return "", 0, Internal("write justification file", err)
	case n == 0:
		v.remove(target)
		return "", 0, PreconditionFailed("empty file")
	case n > MaxJustificationSize:
		v.remove(target)
		return "", 0, PreconditionFailed("file larger than 10 MiB")
	}
	return target, n, nil
}

// List returns every justification owned by the provider.
func (v *Vault) List(ctx context.Context, providerID uint64) ([]model.Justification, error) {
	out, err := v.justification.ListByUser(ctx, providerID)
	if err != nil {
		return nil, Internal("list justifications", err)
	}
	if out == nil {
		out = []model.Justification{}
	}
	return out, nil
}

// Delete removes the row and, best effort, the file behind it.
func (v *Vault) Delete(ctx context.Context, providerID, justificationID uint64) error {
	j, err := v.justification.GetByID(ctx, justificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("justification %d", justificationID)
		}
		return Internal("load justification", err)
	}
	if j.UserID != providerID {
		return Forbidden("justification %d does not belong to provider %d", justificationID, providerID)
	}
	v.remove(j.FilePath)
	if err := v.justification.Delete(ctx, justificationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("justification %d", justificationID)
		}
		return Internal("delete justification", err)
	}
	v.log.Info("justification deleted", zap.Uint64("provider_id", providerID), zap.Uint64("justification_id", justificationID))
	return nil
}

func (v *Vault) remove(p string) {
	if p == "" {
		return
	}
	if err := v.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		v.log.Error("remove justification file", zap.String("path", p), zap.Error(err))
	}
}

// extension returns the original extension verbatim; matching is done on
// its lower-cased form.
func extension(name string) string {
	return path.Ext(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
}

func allowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range allowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
