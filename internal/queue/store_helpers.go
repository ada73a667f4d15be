package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, source_path, name, size, mime_type, last_modified, status, progress, error_message, privacy, category, tags_json, derived_json, attempts, remote_id, remote_url, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              string
		sourcePath      string
		name            string
		size            sql.NullInt64
		mimeType        sql.NullString
		lastModifiedRaw sql.NullString
		statusStr       string
		progress        sql.NullInt64
		errorMessage    sql.NullString
		privacy         sql.NullString
		category        sql.NullString
		tagsJSON        sql.NullString
		derivedJSON     sql.NullString
		attempts        sql.NullInt64
		remoteID        sql.NullString
		remoteURL       sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&name,
		&size,
		&mimeType,
		&lastModifiedRaw,
		&statusStr,
		&progress,
		&errorMessage,
		&privacy,
		&category,
		&tagsJSON,
		&derivedJSON,
		&attempts,
		&remoteID,
		&remoteURL,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		SourcePath:   sourcePath,
		Name:         name,
		Size:         size.Int64,
		MimeType:     mimeType.String,
		Status:       Status(statusStr),
		Progress:     int(progress.Int64),
		ErrorMessage: errorMessage.String,
		Privacy:      privacy.String,
		Category:     category.String,
		TagsJSON:     tagsJSON.String,
		DerivedJSON:  derivedJSON.String,
		Attempts:     int(attempts.Int64),
		RemoteID:     remoteID.String,
		RemoteURL:    remoteURL.String,
	}

	if lastModifiedRaw.Valid {
		if modified, err := parseTimeString(lastModifiedRaw.String); err == nil {
			item.LastModified = modified
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
