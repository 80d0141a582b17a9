// Package gdrive mirrors finished reports into a Google Drive folder.
package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Amchestnut/NeuralMeet/internal/storage"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

const docMimeType = "application/vnd.google-apps.document"

// Uploader is a summary.Sink that uploads each generated report as a
// Google Doc. Re-finishing a run updates its existing document.
type Uploader struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewUploader(ctx context.Context, credPath, folderID string) (*Uploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newUploader(svc, folderID), nil
}

func newUploader(svc *drive.Service, folderID string) *Uploader {
	return &Uploader{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

func (u *Uploader) RunStarted(context.Context, summary.RunInfo) error { return nil }

func (u *Uploader) WindowCompleted(context.Context, summary.RunInfo, summary.Window) error {
	return nil
}

func (u *Uploader) RunFinished(ctx context.Context, info summary.RunInfo, r summary.Report) error {
	if !r.Generated {
		return nil
	}
	return u.Upload(ctx, info, storage.ReportMarkdown(r))
}

// Upload creates or replaces the run's report document.
func (u *Uploader) Upload(ctx context.Context, info summary.RunInfo, markdown string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	media := strings.NewReader(markdown)
	contentType := googleapi.ContentType("text/markdown")

	if fileID, ok := u.fileIDs[info.ID]; ok {
		if _, err := u.service.Files.Update(fileID, &drive.File{}).Media(media, contentType).Context(ctx).Do(); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	file := &drive.File{
		Name:     fmt.Sprintf("neuralmeet-%s", info.ID),
		MimeType: docMimeType,
	}
	if u.folderID != "" {
		file.Parents = []string{u.folderID}
	}

	doc, err := u.service.Files.Create(file).Media(media, contentType).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	u.fileIDs[info.ID] = doc.Id
	return nil
}
