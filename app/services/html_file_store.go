package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/models"
	"github.com/amirphl/Orochi-Mail/repository"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/google/uuid"
)

// HTMLFileStore writes uploaded HTML message bodies under a base directory
// and records each one as an html asset row
type HTMLFileStore struct {
	baseDir  string
	maxBytes int64
	assets   repository.HTMLAssetRepository
}

// NewHTMLFileStore creates a file store rooted at baseDir
func NewHTMLFileStore(baseDir string, maxBytes int64, assets repository.HTMLAssetRepository) *HTMLFileStore {
	return &HTMLFileStore{
		baseDir:  baseDir,
		maxBytes: maxBytes,
		assets:   assets,
	}
}

// Upload stores the document and returns the asset UUID used as the message html file id
func (s *HTMLFileStore) Upload(ctx context.Context, customerID uint, file businessflow.FileAttachment) (string, error) {
	if len(file.Content) == 0 {
		return "", businessflow.ErrHTMLAttachmentEmpty
	}
	if s.maxBytes > 0 && int64(len(file.Content)) > s.maxBytes {
		return "", businessflow.ErrHTMLAttachmentTooLarge
	}

	mimeType := http.DetectContentType(file.Content)
	if !strings.HasPrefix(mimeType, "text/html") {
		return "", businessflow.ErrHTMLAttachmentNotHTML
	}

	id := uuid.New()
	dateDir := utils.UTCNow().Format("2006-01-02")
	dir := filepath.Join(s.baseDir, dateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	fullPath := filepath.Join(dir, id.String()+".html")
	if err := os.WriteFile(fullPath, file.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write html file: %w", err)
	}

	asset := models.HTMLAsset{
		UUID:             id,
		CustomerID:       customerID,
		OriginalFilename: filepath.Base(file.Filename),
		StoredPath:       filepath.ToSlash(fullPath),
		SizeBytes:        int64(len(file.Content)),
		MimeType:         mimeType,
	}
	if err := s.assets.Save(ctx, &asset); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to save html asset: %w", err)
	}

	return id.String(), nil
}

// Open returns the stored document when it belongs to customerID
func (s *HTMLFileStore) Open(ctx context.Context, customerID uint, fileID string) ([]byte, error) {
	id, err := uuid.Parse(fileID)
	if err != nil {
		return nil, businessflow.ErrHTMLFileNotFound
	}

	asset, err := s.assets.ByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil || asset.CustomerID != customerID {
		return nil, businessflow.ErrHTMLFileNotFound
	}

	return os.ReadFile(filepath.FromSlash(asset.StoredPath))
}

var _ businessflow.FileStore = (*HTMLFileStore)(nil)
