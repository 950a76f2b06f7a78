package jsonstore

import (
	"github.com/pkg/errors"

	"example.com/portaria/internal/models"
)

// Document loads the {"registros": [...]} document at path. A missing or
// corrupted file yields an empty document.
func Document[T any](s *Store, path string) (models.Document[T], error) {
	var doc models.Document[T]
	if _, err := s.Load(path, &doc); err != nil {
		return models.Document[T]{}, err
	}
	if doc.Registros == nil {
		doc.Registros = []T{}
	}
	return doc, nil
}

// Records returns the rows stored at path.
func Records[T any](s *Store, path string) ([]T, error) {
	doc, err := Document[T](s, path)
	return doc.Registros, err
}

// SaveRecords replaces the rows stored at path.
func SaveRecords[T any](s *Store, path string, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return s.Save(path, models.Document[T]{Registros: rows})
}

// NextID returns max(ID)+1, or 1 for an empty slice.
func NextID[T any, PT interface {
	*T
	models.Record
}](rows []T) int {
	highest := 0
	for i := range rows {
		if id := PT(&rows[i]).GetID(); id > highest {
			highest = id
		}
	}
	return highest + 1
}

// Append assigns the next ID to rec, appends it to path and returns it.
func Append[T any, PT interface {
	*T
	models.Record
}](s *Store, path string, rec T) (T, error) {
	rows, err := Records[T](s, path)
	if err != nil {
		return rec, err
	}

	PT(&rec).SetID(NextID[T, PT](rows))
	rows = append(rows, rec)
	if err := SaveRecords(s, path, rows); err != nil {
		return rec, errors.Wrap(err, "failed to append record")
	}
	return rec, nil
}

// UpsertByEntryID replaces the row sharing rec's entry id, keeping that
// row's ID, or appends rec with a new ID. It reports whether a row was added.
// Records without an entry id are always appended.
func UpsertByEntryID[T any, PT interface {
	*T
	models.EntryRecord
}](s *Store, path string, rec T) (T, bool, error) {
	rows, err := Records[T](s, path)
	if err != nil {
		return rec, false, err
	}

	entryID := PT(&rec).GetEntryID()
	if entryID > 0 {
		for i := range rows {
			if PT(&rows[i]).GetEntryID() != entryID {
				continue
			}
			PT(&rec).SetID(PT(&rows[i]).GetID())
			rows[i] = rec
			if err := SaveRecords(s, path, rows); err != nil {
				return rec, false, errors.Wrap(err, "failed to update record")
			}
			return rec, false, nil
		}
	}

	PT(&rec).SetID(NextID[T, PT](rows))
	rows = append(rows, rec)
	if err := SaveRecords(s, path, rows); err != nil {
		return rec, false, errors.Wrap(err, "failed to append record")
	}
	return rec, true, nil
}

// Update applies fn to the row with the given ID and saves the file.
// It reports false when no such row exists.
func Update[T any, PT interface {
	*T
	models.Record
}](s *Store, path string, id int, fn func(PT)) (bool, error) {
	rows, err := Records[T](s, path)
	if err != nil {
		return false, err
	}

	for i := range rows {
		row := PT(&rows[i])
		if row.GetID() != id {
			continue
		}
		fn(row)
		if err := SaveRecords(s, path, rows); err != nil {
			return false, errors.Wrap(err, "failed to update record")
		}
		return true, nil
	}
	return false, nil
}
