package model

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/wppcrm/internal/inbox"
)

// Compose kinds.
const (
	ComposeText  = "text"
	ComposeFile  = "file"
	ComposeAudio = "audio"
)

// maxAttachment bounds files read from disk for sending.
const maxAttachment = 64 << 20

// Compose is one parsed composer line.
type Compose struct {
	Kind    string
	Text    string
	Path    string
	Caption string
}

// ParseCompose reads a composer line. "/file <path> [caption]" and
// "/audio <path>" attach a file; "//" escapes a leading slash; anything else
// is text.
func ParseCompose(input string) (Compose, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Compose{}, inbox.ErrEmptyMessage
	}
	if strings.HasPrefix(trimmed, "//") {
		return Compose{Kind: ComposeText, Text: input[strings.Index(input, "/")+1:]}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Compose{Kind: ComposeText, Text: input}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "file":
		path, caption, _ := strings.Cut(rest, " ")
		if path == "" {
			return Compose{}, fmt.Errorf("usage: /file <path> [caption]")
		}
		return Compose{Kind: ComposeFile, Path: path, Caption: strings.TrimSpace(caption)}, nil
	case "audio":
		if rest == "" {
			return Compose{}, fmt.Errorf("usage: /audio <path>")
		}
		return Compose{Kind: ComposeAudio, Path: rest}, nil
	}
	return Compose{Kind: ComposeText, Text: input}, nil
}

// readAttachment loads path and guesses its MIME type from the extension,
// then from the content.
func readAttachment(path string) (inbox.Media, error) {
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return inbox.Media{}, err
	}
	if info.IsDir() {
		return inbox.Media{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxAttachment {
		return inbox.Media{}, fmt.Errorf("%s is larger than %d MiB", path, maxAttachment>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return inbox.Media{}, err
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return inbox.Media{Data: data, MimeType: mimeType, FileName: filepath.Base(path)}, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
