// Package drive archives local files to Google Drive with replace-by-title
// semantics and exposes folder listings as title-to-link maps.
package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gobusters/ectologger"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

const sheetMimeType = "application/vnd.google-apps.spreadsheet"

// UploadOptions control a single archive upload.
type UploadOptions struct {
	// ConvertSpreadsheet uploads xlsx/xls/csv files as native Google Sheets.
	ConvertSpreadsheet bool
	// ReplaceByTitle updates the first existing file with the same title in
	// the folder instead of creating a duplicate.
	ReplaceByTitle bool
	// Title overrides the derived title.
	Title string
}

// Archive is the cloud store contract the pipeline depends on.
type Archive interface {
	Upload(ctx context.Context, filePath, folderID string, opts UploadOptions) (string, error)
	ListTitleLinks(ctx context.Context, folderID string) (map[string]string, error)
}

// Service is the Google Drive implementation of Archive.
type Service struct {
	svc    *gdrive.Service
	logger ectologger.Logger
}

// NewService builds a Drive client from a service-account credentials file.
func NewService(ctx context.Context, credentialsPath string, logger ectologger.Logger) (*Service, error) {
	svc, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Service{svc: svc, logger: logger}, nil
}

// Upload sends a local file into the folder, replacing an existing file with
// the same title when requested. Returns the viewable link.
func (s *Service) Upload(ctx context.Context, filePath, folderID string, opts UploadOptions) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "drive.Service.Upload")
	defer span.End()

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload source: %w", err)
	}
	defer f.Close()

	title := opts.Title
	if title == "" {
		title = deriveTitle(filePath, opts.ConvertSpreadsheet)
	}

	var existingID string
	if opts.ReplaceByTitle {
		existingID, err = s.findByTitle(ctx, folderID, title)
		if err != nil {
			// listing failure degrades to a fresh upload
			s.logger.WithContext(ctx).WithError(err).Warnf("failed to look up existing file %q", title)
		}
	}

	meta := &gdrive.File{Name: title}
	if opts.ConvertSpreadsheet && isSpreadsheet(filePath) {
		meta.MimeType = sheetMimeType
	}

	var uploaded *gdrive.File
	if existingID != "" {
		uploaded, err = s.svc.Files.Update(existingID, meta).
			Media(f).
			Fields("id", "webViewLink").
			SupportsAllDrives(true).
			Context(ctx).Do()
	} else {
		meta.Parents = []string{folderID}
		uploaded, err = s.svc.Files.Create(meta).
			Media(f).
			Fields("id", "webViewLink").
			SupportsAllDrives(true).
			Context(ctx).Do()
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", title, err)
	}

	link := uploaded.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + uploaded.Id + "/view"
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"title":    title,
		"file_id":  uploaded.Id,
		"replaced": existingID != "",
	}).Info("archived file to drive")

	return link, nil
}

// ListTitleLinks returns a title-to-link map for every non-trashed file in
// the folder. On duplicate titles the first listing entry wins.
func (s *Service) ListTitleLinks(ctx context.Context, folderID string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "drive.Service.ListTitleLinks")
	defer span.End()

	links := make(map[string]string)
	query := fmt.Sprintf("'%s' in parents and trashed=false", folderID)

	pageToken := ""
	for {
		call := s.svc.Files.List().
			Q(query).
			Fields("nextPageToken", "files(id, name, webViewLink)").
			PageSize(1000).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list drive folder: %w", err)
		}

		for _, file := range page.Files {
			if _, seen := links[file.Name]; seen {
				continue
			}
			link := file.WebViewLink
			if link == "" {
				link = "https://drive.google.com/file/d/" + file.Id + "/view"
			}
			links[file.Name] = link
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return links, nil
}

func (s *Service) findByTitle(ctx context.Context, folderID, title string) (string, error) {
	safeTitle := strings.ReplaceAll(title, `'`, `\'`)
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", safeTitle, folderID)

	list, err := s.svc.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func isSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

func deriveTitle(path string, convert bool) string {
	name := filepath.Base(path)
	if convert && isSpreadsheet(path) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
