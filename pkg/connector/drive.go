package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

const defaultDriveBaseURL = "https://www.googleapis.com/drive/v3"

// driveListResponse mirrors the files.list response shape.
type driveListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

type driveFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// DriveConnector reads tabular files from one Google Drive folder via the
// Drive v3 REST API. The access token is supplied by the caller; credential
// acquisition and refresh happen outside this package.
type DriveConnector struct {
	client   *http.Client
	baseURL  string
	folderID string
	token    string
	logger   zerolog.Logger
}

// DriveOption customizes a DriveConnector.
type DriveOption func(*DriveConnector)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) DriveOption {
	return func(c *DriveConnector) { c.client = client }
}

// WithBaseURL overrides the Drive API base URL.
func WithBaseURL(base string) DriveOption {
	return func(c *DriveConnector) { c.baseURL = base }
}

// NewDriveConnector creates a connector for one Drive folder.
func NewDriveConnector(folderID, token string, logger zerolog.Logger, opts ...DriveOption) *DriveConnector {
	c := &DriveConnector{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  defaultDriveBaseURL,
		folderID: folderID,
		token:    token,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the CSV and XLSX files in the folder with modification times.
// The files.list endpoint paginates; every page is drained so large folders
// do not silently lose datasets.
func (c *DriveConnector) List(ctx context.Context) ([]models.FileInfo, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", c.folderID)

	var files []models.FileInfo
	pageToken := ""
	for {
		params := url.Values{
			"q":        {query},
			"fields":   {"nextPageToken, files(id, name, mimeType, modifiedTime)"},
			"pageSize": {"1000"},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var listResp driveListResponse
		if err := c.getJSON(ctx, c.baseURL+"/files?"+params.Encode(), &listResp); err != nil {
			return nil, err
		}

		for _, f := range listResp.Files {
			if !isTabularMime(f.MimeType, f.Name) {
				continue
			}
			files = append(files, models.FileInfo{
				ID:         f.ID,
				Name:       f.Name,
				ModifiedAt: f.ModifiedTime,
			})
		}

		pageToken = listResp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Debug().Int("files", len(files)).Msg("Listed source folder")
	return files, nil
}

// Fetch downloads one file's raw content.
func (c *DriveConnector) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to build fetch request")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnectivity, "failed to fetch file %s", fileID)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.Newf(errors.CodeNotFound, "source file %s not found", fileID)
	default:
		resp.Body.Close()
		return nil, errors.Newf(errors.CodeConnectivity, "fetch of file %s returned status %d", fileID, resp.StatusCode)
	}
}

func (c *DriveConnector) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to build list request")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectivity, "failed to list source folder")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.CodeConnectivity, "list returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CodeConnectivity, "failed to decode list response")
	}
	return nil
}

func (c *DriveConnector) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// isTabularMime reports whether a Drive file looks like a table we can load.
func isTabularMime(mime, name string) bool {
	switch mime {
	case "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return hasTabularExtension(name)
}
