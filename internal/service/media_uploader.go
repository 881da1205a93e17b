package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
)

// maxMediaBytes bounds a single download.
const maxMediaBytes = 200 << 20

// MediaUploader implements canvas.Uploader for the local canvas: it
// downloads the URL into <dataDir>/media and records a media reference.
type MediaUploader struct {
	media  domain.MediaStore
	dir    string
	client *http.Client
	logger *slog.Logger
}

// NewMediaUploader creates an uploader writing under dataDir. A nil client
// gets a 60 second timeout.
func NewMediaUploader(media domain.MediaStore, dataDir string, client *http.Client) *MediaUploader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaUploader{
		media:  media,
		dir:    filepath.Join(dataDir, "media"),
		client: client,
		logger: log.WithComponent("uploader"),
	}
}

var _ canvas.Uploader = (*MediaUploader)(nil)

func (u *MediaUploader) Upload(ctx context.Context, req canvas.UploadRequest) (canvas.UploadResult, error) {
	if req.Type != "image" && req.Type != "video" {
		return canvas.UploadResult{}, fmt.Errorf("unsupported media type %q", req.Type)
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return canvas.UploadResult{}, fmt.Errorf("media url %q must be http or https", req.URL)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return canvas.UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := u.client.Do(hreq)
	if err != nil {
		return canvas.UploadResult{}, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return canvas.UploadResult{}, fmt.Errorf("fetch media: HTTP %d", resp.StatusCode)
	}

	mimeType := req.MimeType
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			mimeType = mt
		}
	}
	if mimeType == "" {
		mimeType = generator.MimeType(req.Type, req.URL)
	}

	if err := os.MkdirAll(u.dir, 0755); err != nil {
		return canvas.UploadResult{}, fmt.Errorf("mkdir for media: %w", err)
	}
	ref := "M" + strings.ReplaceAll(uuid.New().String(), "-", "")
	filePath := filepath.Join(u.dir, ref+extension(mimeType, parsed.Path))

	f, err := os.Create(filePath)
	if err != nil {
		return canvas.UploadResult{}, fmt.Errorf("create media file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxMediaBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxMediaBytes {
		err = fmt.Errorf("media larger than %d bytes", maxMediaBytes)
	}
	if err != nil {
		_ = os.Remove(filePath)
		return canvas.UploadResult{}, fmt.Errorf("write media: %w", err)
	}

	m := &domain.Media{Ref: ref, Type: req.Type, URL: req.URL, MimeType: mimeType, FilePath: filePath}
	if err := u.media.CreateMedia(m); err != nil {
		_ = os.Remove(filePath)
		return canvas.UploadResult{}, fmt.Errorf("record media: %w", err)
	}
	u.logger.Debug("media uploaded", "ref", ref, "url", req.URL, "bytes", n, "mime", mimeType)
	return canvas.UploadResult{Ref: ref}, nil
}

func extension(mimeType, urlPath string) string {
	if ext := path.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
