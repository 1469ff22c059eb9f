package evaluator

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/timvw/vibecheck/internal/model"
)

// loadImage returns the image bytes and MIME type for a request. Inline
// bytes win over a path. A missing or unreadable file is an artifact
// error, which the Runner treats as permanent.
func loadImage(req model.EvaluationRequest) ([]byte, string, error) {
	if len(req.ImageData) > 0 {
		return req.ImageData, detectMIME(req.ImagePath, req.ImageData), nil
	}
	data, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return nil, "", &model.ArtifactError{Path: req.ImagePath, Err: err}
	}
	return data, detectMIME(req.ImagePath, data), nil
}

// encodeImage returns the base64 encoding used for inline image blocks.
func encodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// detectMIME resolves the image MIME type from the file extension,
// falling back to content sniffing. The vision APIs accept png, jpeg,
// webp and gif.
func detectMIME(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}
