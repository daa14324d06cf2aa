package mailparse

import (
	"encoding/base64"
	"strings"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/models"
)

const (
	mimeHTML  = "text/html"
	mimePlain = "text/plain"
)

// Extract resolves the text payload of a message part tree.
//
// Containers are walked in order. A nested container that resolves to anything non-empty
// wins immediately; otherwise the first HTML leaf is preferred over the first plain leaf
// among the direct children. A part with no payload yields "" without error.
func Extract(part *models.BodyPart) (string, error) {
	if part == nil {
		return "", nil
	}

	if part.IsContainer() {
		var htmlData, plainData string
		for _, child := range part.Parts {
			if child == nil {
				continue
			}
			if child.IsContainer() {
				body, err := Extract(child)
				if err != nil {
					return "", err
				}
				if body != "" {
					return body, nil
				}
				continue
			}
			if child.Data == "" {
				continue
			}
			switch mediaType(child.MimeType) {
			case mimeHTML:
				if htmlData == "" {
					htmlData = child.Data
				}
			case mimePlain:
				if plainData == "" {
					plainData = child.Data
				}
			}
		}

		if htmlData != "" {
			return DecodeData(htmlData)
		}
		if plainData != "" {
			return DecodeData(plainData)
		}
	}

	if part.Data != "" {
		return DecodeData(part.Data)
	}
	return "", nil
}

// DecodeData decodes a base64url payload. Padding and the standard alphabet are tolerated.
func DecodeData(data string) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(data), "=")
	s = strings.NewReplacer("+", "-", "/", "_", "\r", "", "\n", "").Replace(s)

	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", failure.New(failure.KindDecode, "decode body", err)
	}
	return string(decoded), nil
}

// EncodeData is the inverse of DecodeData
func EncodeData(body []byte) string {
	return base64.URLEncoding.EncodeToString(body)
}

func mediaType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
