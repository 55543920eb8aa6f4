package analysis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// ErrInvalidImage is returned when the image payload is not valid base64.
var ErrInvalidImage = errors.New("invalid log image payload")

// DecodeImage decodes a base64 screenshot, with or without a
// "data:<mime>;base64," prefix. The MIME type comes from the prefix when
// present, otherwise from the decoded bytes, otherwise defaultMIME.
// An empty payload yields a nil image and no error.
func DecodeImage(payload, defaultMIME string) (*types.Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}

	var declared string
	if i := strings.IndexByte(payload, ','); i >= 0 {
		declared = headerMIME(payload[:i])
		payload = payload[i+1:]
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrInvalidImage)
	}

	mimeType := declared
	if mimeType == "" {
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
			mimeType = sniffed
		}
	}
	if mimeType == "" {
		mimeType = defaultMIME
	}

	return &types.Image{MIMEType: mimeType, Data: data}, nil
}

// headerMIME extracts the media type from "data:image/jpeg;base64".
func headerMIME(header string) string {
	header = strings.TrimPrefix(strings.TrimSpace(header), "data:")
	header = strings.TrimSuffix(header, ";base64")
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return ""
	}
	return mt
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
