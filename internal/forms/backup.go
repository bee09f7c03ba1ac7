package forms

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// BackupArchiveExt is the only archive format the backend restores from.
const BackupArchiveExt = ".tar.gz"

// ValidateUploadName checks the selected file's name before any upload starts.
func ValidateUploadName(filename string) error {
	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return invalid(MsgUploadFileRequired)
	}
	if !strings.HasSuffix(strings.ToLower(name), BackupArchiveExt) || len(name) == len(BackupArchiveExt) {
		return invalid(MsgUploadExtension)
	}
	return nil
}

// ParseBackupName validates the name given to a new backup.
func ParseBackupName(text string) (string, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return "", invalid(MsgBackupNameRequired)
	}
	return name, nil
}

// ParseRestoreTarget validates the index a backup is restored into.
func ParseRestoreTarget(text string) (string, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return "", invalid(MsgTargetIndexRequired)
	}
	return name, nil
}

// ParseVectorID validates a vector id for get and delete.
func ParseVectorID(text string) (string, error) {
	id := strings.TrimSpace(text)
	if id == "" {
		return "", invalid(MsgVectorIDRequired)
	}
	return id, nil
}

// ParseRequiredFilter validates the filter of a bulk delete, which may not be blank.
func ParseRequiredFilter(text string) (json.RawMessage, error) {
	filter, err := ParseFilter(text)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, invalid(MsgFilterRequired)
	}
	return filter, nil
}
