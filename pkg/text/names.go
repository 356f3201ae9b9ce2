package text

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^0-9A-Za-z.\-_]`)

// SanitizeFilename replaces every character outside [0-9A-Za-z.-_] with an underscore
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// TenantFolder is the directory name used for a tenant cname, dots become underscores
func TenantFolder(cname string) string {
	return strings.ReplaceAll(cname, ".", "_")
}

// mimeExtensions covers the content types Hyku tenants upload most
var mimeExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/tiff":         ".tiff",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/plain": ".txt",
	"text/csv":   ".csv",
	"video/mp4":  ".mp4",
	"audio/mpeg": ".mp3",
}

// ExtensionForMIME returns the file extension for a content type, or ""
func ExtensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mimeExtensions[mime]
}

// DownloadName builds the local file name for a file set: "<id>_<title><ext>".
// The title falls back to the id and the extension is only appended when the
// sanitized title does not already end with it.
func DownloadName(fileSetID, title, mime string) string {
	if strings.TrimSpace(title) == "" {
		title = fileSetID
	}
	name := SanitizeFilename(title)
	if ext := ExtensionForMIME(mime); ext != "" && !strings.HasSuffix(name, ext) {
		name += ext
	}
	return fileSetID + "_" + name
}

// OutputPath joins an output directory with "<cname>_<suffix>.json"
func OutputPath(dir, cname, suffix string) string {
	return filepath.Join(dir, cname+"_"+suffix+".json")
}
