package detection

import (
	"mime"
	"net/http"
	"sort"
	"strings"
)

// MaxFileSize is the intake limit (50 MiB).
const MaxFileSize int64 = 50 * 1024 * 1024

// acceptedTypes maps accepted MIME types to their kind and the extensions
// the drop zone advertises.
var acceptedTypes = map[string]struct {
	Kind MediaKind
	Exts []string
}{
	"image/jpeg":  {KindImage, []string{".jpeg", ".jpg"}},
	"image/png":   {KindImage, []string{".png"}},
	"image/gif":   {KindImage, []string{".gif"}},
	"image/webp":  {KindImage, []string{".webp"}},
	"audio/mpeg":  {KindAudio, []string{".mp3"}},
	"audio/wav":   {KindAudio, []string{".wav"}},
	"audio/ogg":   {KindAudio, []string{".ogg"}},
	"audio/mp4":   {KindAudio, []string{".m4a"}},
	"audio/x-m4a": {KindAudio, []string{".m4a"}},
	"audio/flac":  {KindAudio, []string{".flac"}},
}

// AcceptedType describes one entry of the accepted input list.
type AcceptedType struct {
	MIMEType   string    `json:"mime_type"`
	Kind       MediaKind `json:"kind"`
	Extensions []string  `json:"extensions"`
}

// AcceptedTypes returns the accepted input list sorted by MIME type.
func AcceptedTypes() []AcceptedType {
	out := make([]AcceptedType, 0, len(acceptedTypes))
	for mt, v := range acceptedTypes {
		out = append(out, AcceptedType{MIMEType: mt, Kind: v.Kind, Extensions: append([]string(nil), v.Exts...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MIMEType < out[j].MIMEType })
	return out
}

// NormalizeMIME lowercases the type and drops parameters such as charset.
func NormalizeMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		if i := strings.IndexByte(raw, ';'); i >= 0 {
			raw = raw[:i]
		}
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

// IsAccepted reports whether the MIME type is on the accepted list.
func IsAccepted(mimeType string) bool {
	_, ok := acceptedTypes[NormalizeMIME(mimeType)]
	return ok
}

// Classify derives the media kind: audio/* is Audio, everything else Image.
func Classify(mimeType string) MediaKind {
	if strings.HasPrefix(NormalizeMIME(mimeType), "audio/") {
		return KindAudio
	}
	return KindImage
}

// ValidateFile checks size first, then type.
func ValidateFile(f SubmittedFile) error {
	if f.Size > MaxFileSize {
		return &FileTooLargeError{Size: f.Size, Limit: MaxFileSize}
	}
	if !IsAccepted(f.MIMEType) {
		return &UnsupportedFileError{MIMEType: f.MIMEType}
	}
	return nil
}

// TypeForExtension returns the accepted MIME type advertised for ext
// (".png", ".mp3", ...), or "" when none is.
func TypeForExtension(ext string) string {
	ext = strings.ToLower(ext)
	for _, t := range AcceptedTypes() {
		for _, e := range t.Extensions {
			if e == ext {
				return t.MIMEType
			}
		}
	}
	return ""
}

// sniffAliases maps net/http sniffing results onto the accepted type names.
var sniffAliases = map[string]string{
	"audio/wave":      "audio/wav",
	"audio/x-wav":     "audio/wav",
	"application/ogg": "audio/ogg",
}

// SniffMIME guesses the type of a file from its first bytes. Used only when
// no type was declared; declared types are never aliased.
func SniffMIME(data []byte) string {
	mt := NormalizeMIME(http.DetectContentType(data))
	if alias, ok := sniffAliases[mt]; ok {
		return alias
	}
	return mt
}
