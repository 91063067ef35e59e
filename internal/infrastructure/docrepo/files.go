package docrepo

import (
	"fmt"
	"mime"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

const defaultDownloadName = "download"

var quotedFilename = regexp.MustCompile(`filename="?([^";]+)"?`)

func filePartHeader(file *domain.FileUpload) textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.FileName)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	return header
}

// filenameFromDisposition extracts the download name from a
// Content-Disposition header, falling back to "download".
func filenameFromDisposition(header string) string {
	if header == "" {
		return defaultDownloadName
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	if m := quotedFilename.FindStringSubmatch(header); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	return defaultDownloadName
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
