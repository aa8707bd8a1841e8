package conversation

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

// DecodeImage accepts a data URL (data:image/png;base64,...) or bare base64.
// The MIME type comes from the data URL when present, otherwise from the
// decoded bytes.
func DecodeImage(encoded string) (*modelapi.Image, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty image", ErrMediaAccess)
	}

	mimeType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: image data URL is not base64", ErrMediaAccess)
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediaAccess, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMediaAccess)
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrMediaAccess, mimeType)
	}

	return &modelapi.Image{MIMEType: mimeType, Data: data}, nil
}
