package vidu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	// Registered so image dimensions can be read from the common formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/alexfaker/autoGenVideo/internal/config"
)

const (
	endpointUploadMeta   = "/tools/v1/files/uploads"
	endpointUploadFinish = "/tools/v1/files/uploads/%s/finish"
)

// minVideoSize is the smallest payload accepted as a real video file.
const minVideoSize = 1024

// contentTypeByExt maps image extensions to the MIME types declared during
// upload. Unknown extensions fall back to JPEG.
var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// UploadResult describes a completed image upload.
type UploadResult struct {
	// AssetRef is the reference submitted with generation jobs.
	AssetRef string
	// UploadID is the raw upload identifier.
	UploadID string
	// Width and Height are the decoded pixel dimensions, zero when the
	// image could not be decoded.
	Width  int
	Height int
}

// Transfer moves binary payloads to and from the remote service: the
// three-step image upload and the verified video download.
type Transfer struct {
	httpClient *http.Client
	cfg        config.RemoteConfig
	tokens     TokenSource
	logger     *slog.Logger
	outputDir  string
}

// NewTransfer creates a Transfer writing downloaded videos under outputDir.
func NewTransfer(cfg config.RemoteConfig, outputDir string, tokens TokenSource, logger *slog.Logger) (*Transfer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if outputDir == "" {
		return nil, errors.New("output directory cannot be empty")
	}

	return &Transfer{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		tokens:     tokens,
		logger:     logger.With("component", "vidu_transfer"),
		outputDir:  outputDir,
	}, nil
}

type uploadMetaRequest struct {
	Metadata map[string]string `json:"metadata"`
	Scene    string            `json:"scene"`
}

type uploadMetaResponse struct {
	ID        string `json:"id"`
	PutURL    string `json:"put_url"`
	ExpiresAt string `json:"expires_at"`
}

type uploadFinishRequest struct {
	Etag string `json:"etag"`
	ID   string `json:"id"`
}

type uploadFinishResponse struct {
	URI string `json:"uri"`
}

// UploadImage uploads one local image: it registers the upload, pushes the
// bytes to the presigned URL, and confirms completion. The returned asset
// reference is what generation jobs submit.
func (t *Transfer) UploadImage(ctx context.Context, imagePath string) (UploadResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return UploadResult{}, &TransferError{Op: "upload", Message: "cannot read image file", Err: err}
	}

	width, height := imageDimensions(data)
	if width == 0 {
		t.logger.Warn("cannot decode image dimensions", "path", imagePath)
	}

	meta, err := t.registerUpload(ctx, width, height)
	if err != nil {
		return UploadResult{}, err
	}

	contentType := contentTypeByExt[strings.ToLower(filepath.Ext(imagePath))]
	if contentType == "" {
		contentType = "image/jpeg"
	}

	etag, err := t.putBinary(ctx, meta.PutURL, data, contentType, width, height)
	if err != nil {
		return UploadResult{}, err
	}

	if err := t.finishUpload(ctx, meta.ID, etag); err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{
		AssetRef: "ssupload:?id=" + meta.ID,
		UploadID: meta.ID,
		Width:    width,
		Height:   height,
	}
	t.logger.Info("image uploaded", "path", imagePath, "upload_id", meta.ID)
	return result, nil
}

// registerUpload performs step one: declare the file and obtain the upload
// ID and presigned destination.
func (t *Transfer) registerUpload(ctx context.Context, width, height int) (uploadMetaResponse, error) {
	payload := uploadMetaRequest{
		Metadata: map[string]string{
			"image-height": fmt.Sprintf("%d", height),
			"image-width":  fmt.Sprintf("%d", width),
		},
		Scene: "vidu",
	}

	var meta uploadMetaResponse
	if err := t.doJSON(ctx, http.MethodPost, t.cfg.APIBaseURL+endpointUploadMeta, payload, &meta, "upload_register"); err != nil {
		return uploadMetaResponse{}, err
	}
	if meta.ID == "" || meta.PutURL == "" {
		return uploadMetaResponse{}, &TransferError{Op: "upload_register", Message: "upload registration response incomplete"}
	}
	return meta, nil
}

// putBinary performs step two: push the raw bytes to the presigned URL and
// return the storage ETag.
func (t *Transfer) putBinary(ctx context.Context, putURL string, data []byte, contentType string, width, height int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return "", &TransferError{Op: "upload_binary", Message: "cannot build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", t.cfg.BaseURL)
	req.Header.Set("Referer", t.cfg.BaseURL+"/")
	req.Header.Set("X-Amz-Meta-Image-Height", fmt.Sprintf("%d", height))
	req.Header.Set("X-Amz-Meta-Image-Width", fmt.Sprintf("%d", width))
	t.attachCookie(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", &TransferError{Op: "upload_binary", Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		return "", &TransferError{Op: "upload_binary", StatusCode: resp.StatusCode, Message: "binary upload rejected"}
	}

	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// finishUpload performs step three: confirm the upload so the service
// finalizes the file.
func (t *Transfer) finishUpload(ctx context.Context, uploadID, etag string) error {
	target := t.cfg.APIBaseURL + fmt.Sprintf(endpointUploadFinish, uploadID)
	payload := uploadFinishRequest{Etag: etag, ID: uploadID}

	var finish uploadFinishResponse
	if err := t.doJSON(ctx, http.MethodPut, target, payload, &finish, "upload_finish"); err != nil {
		return err
	}
	if finish.URI == "" {
		return &TransferError{Op: "upload_finish", Message: "finish response missing file URI"}
	}
	return nil
}

// DownloadVideo fetches a finished video and stores it under the output
// directory as filename. The payload is verified as MP4 before the file is
// kept; a decodable failure after HTTP 200 is reported distinctly from
// transport errors.
func (t *Transfer) DownloadVideo(ctx context.Context, videoURL, filename string) (string, int64, error) {
	if videoURL == "" {
		return "", 0, &TransferError{Op: "download", Message: "video URL cannot be empty"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", 0, &TransferError{Op: "download", Message: "cannot build request", Err: err}
	}
	t.attachCookie(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, &TransferError{Op: "download", Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", 0, &TransferError{Op: "download", StatusCode: resp.StatusCode, Message: "download rejected"}
	}

	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", 0, &TransferError{Op: "download", Message: "cannot create output directory", Err: err}
	}

	target := filepath.Join(t.outputDir, filename)
	tmp, err := os.CreateTemp(t.outputDir, ".download-*")
	if err != nil {
		return "", 0, &TransferError{Op: "download", Message: "cannot create temp file", Err: err}
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmpName)
		if err == nil {
			err = closeErr
		}
		return "", 0, &TransferError{Op: "download", Message: "cannot write video file", Err: err}
	}

	if err := verifyVideoFile(tmpName, size); err != nil {
		os.Remove(tmpName)
		return "", 0, err
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", 0, &TransferError{Op: "download", Message: "cannot move video into place", Err: err}
	}

	t.logger.Info("video downloaded", "path", target, "size", size)
	return target, size, nil
}

// verifyVideoFile checks the payload looks like a real MP4: minimum size and
// the ftyp brand at byte four.
func verifyVideoFile(path string, size int64) error {
	if size < minVideoSize {
		return &TransferError{Op: "download", Message: "video payload too small"}
	}

	f, err := os.Open(path)
	if err != nil {
		return &TransferError{Op: "download", Message: "cannot reopen video for verification", Err: err}
	}
	defer f.Close()

	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return &TransferError{Op: "download", Message: "cannot read video header", Err: err}
	}
	if !bytes.Equal(header[4:8], []byte("ftyp")) {
		return &TransferError{Op: "download", Message: "payload is not a valid video file"}
	}
	return nil
}

// doJSON sends one JSON request and decodes the JSON response. Unlike the
// task client, transfers are not retried: a failed upload step restarts the
// whole sequence.
func (t *Transfer) doJSON(ctx context.Context, method, target string, payload, out any, op string) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return &TransferError{Op: op, Message: "cannot encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(encoded))
	if err != nil {
		return &TransferError{Op: op, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", t.cfg.BaseURL)
	req.Header.Set("Referer", t.cfg.BaseURL+"/")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("X-App-Version", "-")
	req.Header.Set("X-Platform", "web")
	t.attachCookie(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &TransferError{Op: op, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransferError{Op: op, StatusCode: resp.StatusCode, Message: "cannot read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &TransferError{Op: op, StatusCode: resp.StatusCode, Message: serviceMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransferError{Op: op, Message: "unparsable response", Err: err}
	}
	return nil
}

func (t *Transfer) attachCookie(req *http.Request) {
	if t.tokens == nil {
		return
	}
	if token, ok := t.tokens.Token(); ok {
		req.AddCookie(&http.Cookie{Name: "JWT", Value: token})
	}
}

// imageDimensions decodes just the image header for pixel dimensions,
// returning zeros when the format is unrecognized.
func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
