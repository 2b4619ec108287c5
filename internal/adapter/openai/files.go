package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
)

// ListFiles returns every file object of the account.
func (c *Client) ListFiles(ctx context.Context) ([]aiplatform.File, error) {
	items, err := listAll(ctx, c, "/v1/files", nil, func(f aiplatform.File) string { return f.ID })
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return items, nil
}

// UploadFile streams r as a multipart upload under filename.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader, purpose string) (*aiplatform.File, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/v1/files", func() (io.Reader, string, error) {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeUpload(mw, filename, r, purpose))
		}()
		return pr, mw.FormDataContentType(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	var f aiplatform.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("upload %s: unmarshal response: %w", filename, err)
	}
	return &f, nil
}

func writeUpload(mw *multipart.Writer, filename string, r io.Reader, purpose string) error {
	if err := mw.WriteField("purpose", purpose); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// DeleteFile deletes a file object.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(fileID), nil, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}
