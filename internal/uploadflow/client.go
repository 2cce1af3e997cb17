package uploadflow

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"company-directory-backend/internal/progress"
	"company-directory-backend/internal/services/companyimport"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	validatePath   = "/api/company-imports/validate"
	bulkUploadPath = "/api/company-imports/bulk-upload"
	templatePath   = "/api/company-imports/template"
)

// Client talks to the company import endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient uses hc as is; it must not carry a total timeout, uploads stream
// for as long as the import runs.
func NewClient(baseURL string, hc *http.Client, log logrus.FieldLogger) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, log: log}
}

// Validate posts the file to the validate endpoint. A file the server could not
// read still yields a report, with isValid false.
func (c *Client) Validate(ctx context.Context, name string, r io.Reader) (*companyimport.ValidationReport, error) {
	resp, err := c.postFile(ctx, validatePath, name, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
		var report companyimport.ValidationReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return nil, errors.Wrap(err, "decode validation report")
		}
		return &report, nil
	default:
		return nil, responseError(resp)
	}
}

// Upload posts the file to the bulk-upload endpoint and calls onFrame for every
// frame, the final one included. It returns the final frame.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, onFrame func(progress.Frame)) (progress.Frame, error) {
	resp, err := c.postFile(ctx, bulkUploadPath, name, r)
	if err != nil {
		return progress.Frame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return progress.Frame{}, responseError(resp)
	}

	for f, err := range progress.NewReader(resp.Body, c.log).Frames() {
		if err != nil {
			return progress.Frame{}, errors.Wrap(err, "read progress stream")
		}
		if onFrame != nil {
			onFrame(f)
		}
		if f.IsFinal() {
			return f, nil
		}
	}
	return progress.Frame{}, errors.New("progress stream closed without a result")
}

// Template downloads the CSV template.
func (c *Client) Template(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+templatePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build template request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download template")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	return io.ReadAll(resp.Body)
}

// postFile streams r as the "file" part of a multipart body.
func (c *Client) postFile(ctx context.Context, path, name string, r io.Reader) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.log.WithFields(logrus.Fields{"path": path, "filename": name}).Debug("posting company file")
	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, errors.Wrapf(err, "post %s", path)
	}
	return resp, nil
}

func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return errors.Errorf("server answered %d: %s", resp.StatusCode, body.Error)
	}
	return errors.Errorf("server answered %d", resp.StatusCode)
}
