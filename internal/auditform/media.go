package auditform

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// MaxImageSize caps each photo attachment.
const MaxImageSize = 5 << 20

// AttachPhoto stores data as a data URI in slot. Oversized or non-image
// files are rejected and the slot keeps its previous value.
func (f *Form) AttachPhoto(slot, contentType string, data []byte) error {
	field := f.Record.Photo(slot)
	if field == nil {
		return ErrUnknownPhotoSlot
	}
	if len(data) > MaxImageSize {
		return ErrImageTooLarge
	}
	mimeType := http.DetectContentType(data)
	declared := strings.ToLower(strings.TrimSpace(contentType))
	// formats the sniffer does not know (HEIC) are trusted on the declared type
	if mimeType == "application/octet-stream" && strings.HasPrefix(declared, "image/") {
		mimeType = declared
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return ErrNotAnImage
	}
	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	*field = &uri
	f.touch()
	return nil
}

// RemovePhoto clears a slot.
func (f *Form) RemovePhoto(slot string) error {
	field := f.Record.Photo(slot)
	if field == nil {
		return ErrUnknownPhotoSlot
	}
	*field = nil
	f.touch()
	return nil
}

// SaveSignature confirms a drawn signature. Only saved signatures count for submission.
func (f *Form) SaveSignature(who, dataURI string) error {
	field := f.Record.Signature(who)
	if field == nil {
		return ErrUnknownSignatory
	}
	dataURI = strings.TrimSpace(dataURI)
	if dataURI == "" {
		return ErrSignatureEmpty
	}
	if err := checkImageURI(dataURI); err != nil {
		return err
	}
	*field = &dataURI
	f.touch()
	return nil
}

// ClearSignature drops a saved signature.
func (f *Form) ClearSignature(who string) error {
	field := f.Record.Signature(who)
	if field == nil {
		return ErrUnknownSignatory
	}
	*field = nil
	f.touch()
	return nil
}

func checkImageURI(uri string) error {
	meta, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
		return ErrSignatureMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		return ErrSignatureEmpty
	}
	if len(raw) > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}
