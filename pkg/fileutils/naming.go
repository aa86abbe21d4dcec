package fileutils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// maxFilenameBase keeps generated names well under common filesystem limits
// even after the uuid suffix and extension are appended.
const maxFilenameBase = 80

// GenerateMediaFilename builds a filename for a stored media file: a slug of
// the given base name, a short random suffix to keep names unique, and the
// extension (including its dot).
func GenerateMediaFilename(base, ext string) (string, error) {
	slug := Slugify(base)
	if slug == "" {
		slug = "picture"
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.WithStack(err)
	}
	suffix := strings.ReplaceAll(id.String(), "-", "")[:8]

	return slug + "_" + suffix + ext, nil
}

// Slugify reduces a name to a snake_case form that is safe in filenames on
// any platform.
func Slugify(name string) string {
	name = sanitizeForFilename(name)
	name = strcase.ToSnake(name)

	// Collapse whatever the case conversion left behind
	name = regexp.MustCompile(`_+`).ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if len(name) > maxFilenameBase {
		name = strings.Trim(name[:maxFilenameBase], "_")
	}

	return name
}

// sanitizeForFilename removes or replaces characters that are not safe for filenames.
func sanitizeForFilename(name string) string {
	// Remove/replace problematic characters
	// Replace various quotes and smart quotes with regular quotes
	name = regexp.MustCompile(`[""]`).ReplaceAllString(name, `"`)
	name = regexp.MustCompile(`['']`).ReplaceAllString(name, `'`)

	// Remove or replace characters that are invalid in filenames
	// Different operating systems have different restrictions, so we'll be conservative
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "")

	// Replace multiple spaces with single space
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	// Trim spaces and dots from the ends (Windows doesn't like trailing dots)
	name = strings.Trim(name, " .")

	return name
}
